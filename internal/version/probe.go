package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/security"
)

// Doer is the slice of *http.Client the probe needs. Credentials and TLS
// options live in the Doer's transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// rootResponse is the subset of GET / that the probe reads.
type rootResponse struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
		BuildFlavor  string `json:"build_flavor"`
	} `json:"version"`
	Tagline string `json:"tagline"`
}

// maxRootBody caps how much of the root response is read.
const maxRootBody = 1 << 20

// Probe issues GET <baseURL>/ and parses the cluster version.
//
// Errors are CONNECTION_ERROR on transport failure, PROTOCOL_ERROR on a
// non-200 status or a body that is not JSON, and PARSE_ERROR when
// version.number is missing or malformed.
func Probe(ctx context.Context, client Doer, baseURL string) (Info, error) {
	target := strings.TrimRight(baseURL, "/") + "/"
	display := security.MaskURL(baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Info{}, apperrors.NewConfiguration(fmt.Sprintf("invalid cluster URL %q", display)).WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Info{}, apperrors.NewConnection(display, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRootBody))
	if err != nil {
		return Info{}, apperrors.NewConnection(display, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return Info{}, apperrors.NewProtocol(fmt.Sprintf("cluster root returned HTTP %d: %s",
			resp.StatusCode, truncate(string(body), 200))).
			WithDetails(map[string]interface{}{"status_code": resp.StatusCode})
	}

	var root rootResponse
	if err := json.Unmarshal(body, &root); err != nil {
		return Info{}, apperrors.NewProtocol("cluster root did not return JSON").WithCause(err)
	}

	if root.Version.Number == "" {
		return Info{}, apperrors.NewParse("cluster root response has no version.number")
	}

	info, err := Parse(root.Version.Number)
	if err != nil {
		return Info{}, err
	}
	if strings.EqualFold(root.Version.Distribution, string(OpenSearch)) {
		info.Distribution = OpenSearch
	}

	return info, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
