package pool

import (
	"context"

	"github.com/lukemcguire/vidcheck/probe"
)

// SessionFactory returns a Factory creating HTTP sessions that share cfg,
// including its limiter and robots checker.
func SessionFactory(cfg probe.SessionConfig) Factory {
	return func(_ context.Context, id int) (Handle, error) {
		s, err := probe.NewSession(id, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
