package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ignite/churn-radar/internal/datanorm"
	"github.com/ignite/churn-radar/internal/pkg/httpretry"
)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// HTTPLoader downloads a CSV extract with GET. Transient failures are
// retried when Client is a *httpretry.RetryClient.
type HTTPLoader struct {
	Source datanorm.Source
	URL    string
	Client httpretry.HTTPDoer
}

func (l HTTPLoader) Load(ctx context.Context) (datanorm.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return datanorm.Table{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	client := l.Client
	if client == nil {
		client = httpretry.NewRetryClient(nil, 3)
	}
	resp, err := client.Do(req)
	if err != nil {
		return datanorm.Table{}, fmt.Errorf("fetch %s: %w", l.Describe(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return datanorm.Table{}, fmt.Errorf("fetch %s: status %d: %s", l.Describe(), resp.StatusCode, body)
	}
	return datanorm.ReadTable(l.Source, resp.Body)
}

// Describe omits the query string, which often carries signatures.
func (l HTTPLoader) Describe() string {
	u, err := url.Parse(l.URL)
	if err != nil {
		return "invalid url"
	}
	u.RawQuery = ""
	return u.String()
}
