package staging

import (
	"net/http"
	"strings"

	"github.com/goldenpath/goldenpath/e2e/go/headers"
)

type authStrategy interface {
	Apply(req *http.Request) error
}

type authChain []authStrategy

func (c authChain) Apply(req *http.Request) error {
	for _, s := range c {
		if s == nil {
			continue
		}
		if err := s.Apply(req); err != nil {
			return err
		}
	}
	return nil
}

type bearerAuth struct {
	token string
}

func (b bearerAuth) Apply(req *http.Request) error {
	if b.token == "" {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

type tokenProviderAuth struct {
	provider TokenProvider
}

func (p tokenProviderAuth) Apply(req *http.Request) error {
	if p.provider == nil {
		return nil
	}
	token, err := p.provider.Token(req.Context())
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

type bypassKeyAuth struct {
	key string
}

func (a bypassKeyAuth) Apply(req *http.Request) error {
	if a.key == "" {
		return nil
	}
	req.Header.Set(headers.E2EBypassKey, a.key)
	return nil
}

// suiteHeaders tags every request with the environment and suite name so
// staging logs can be correlated back to a CI run.
type suiteHeaders struct {
	environment string
	testSuite   string
}

func (h suiteHeaders) Apply(req *http.Request) error {
	if h.environment != "" {
		req.Header.Set(headers.Environment, h.environment)
	}
	if h.testSuite != "" {
		req.Header.Set(headers.TestSuite, h.testSuite)
	}
	return nil
}

func buildAuthChain(cfg Config) authChain {
	var chain authChain
	if cfg.AccessToken != "" {
		token := strings.TrimSpace(cfg.AccessToken)
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		chain = append(chain, bearerAuth{token: token})
	}
	if cfg.TokenProvider != nil {
		chain = append(chain, tokenProviderAuth{provider: cfg.TokenProvider})
	}
	if cfg.BypassKey != "" {
		chain = append(chain, bypassKeyAuth{key: cfg.BypassKey})
	}
	chain = append(chain, suiteHeaders{environment: cfg.Environment, testSuite: cfg.TestSuite})
	return chain
}
