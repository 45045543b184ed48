package transport

import (
	"compress/flate"
	"compress/gzip"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/richard-senior/mcp/internal/logger"
)

var httpClient *http.Client

// extraCABundleEnvVar names the environment variable holding a PEM bundle
// path. It is read once at client construction time; set it to
// trust a corporate MITM proxy's CA without disabling verification
// entirely. Empty means "system trust store only".
const extraCABundleEnvVar = "MCP_EXTRA_CA_BUNDLE"

func loadExtraCABundle() ([]byte, error) {
	path := os.Getenv(extraCABundleEnvVar)
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// GetCustomHTTPClient returns the process-wide HTTP client used for every
// outbound fetch a tool, resource or the SSE proxy transport makes: the
// html_to_markdown tool, the proxy's SSE connect path, and the OAuth
// validator's JWKS fetches all share it. The client is built once and
// cached, honoring MCP_EXTRA_CA_BUNDLE if set.
func GetCustomHTTPClient() (*http.Client, error) {
	if httpClient != nil {
		return httpClient, nil
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		logger.Warn("transport: failed to get system cert pool", err)
		rootCAs = x509.NewCertPool()
	}

	if bundle, err := loadExtraCABundle(); err != nil {
		logger.Warn("transport: failed to read extra CA bundle, proceeding without it", err)
	} else if bundle != nil {
		if ok := rootCAs.AppendCertsFromPEM(bundle); !ok {
			logger.Warn("transport: extra CA bundle contained no usable certificates")
		} else {
			logger.Info("transport: added extra CA bundle to root trust store")
		}
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
			Proxy:           http.ProxyFromEnvironment,
		},
		Timeout: 30 * time.Second,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	httpClient = client
	return client, nil
}

// GetHtml fetches htmlUrl and returns its decoded response body, unwrapping
// gzip/deflate/br Content-Encoding as needed. It backs the html_to_markdown
// tool's page fetch.
func GetHtml(htmlUrl string) ([]byte, error) {
	client, err := GetCustomHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	req, err := http.NewRequest("GET", htmlUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch html: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned error status %d", resp.StatusCode)
	}

	var reader io.ReadCloser = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = NewGzipReader(resp.Body)
	case "deflate":
		reader, err = NewDeflateReader(resp.Body)
	case "br":
		reader, err = NewBrotliReader(resp.Body)
	case "":
		// identity encoding, nothing to wrap
	default:
		logger.Warn("transport: unknown content encoding", resp.Header.Get("Content-Encoding"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressing reader: %w", err)
	}
	if reader != resp.Body {
		defer reader.Close()
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// NewGzipReader creates a gzip reader from the provided io.ReadCloser.
func NewGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// NewDeflateReader creates a deflate reader from the provided io.ReadCloser.
func NewDeflateReader(r io.ReadCloser) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

// NewBrotliReader creates a brotli reader from the provided io.ReadCloser.
func NewBrotliReader(r io.ReadCloser) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}
