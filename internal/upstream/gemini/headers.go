package gemini

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// generateGeminiCLIUserAgent creates a User-Agent string matching the
// Gemini CLI client fingerprint.
func generateGeminiCLIUserAgent() string {
	return fmt.Sprintf("gemini-code-assist-cli/1.0.0 (%s; %s) %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// applyCLIHeaders sets the headers the Code Assist endpoint expects on
// every request.
func applyCLIHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("User-Agent", generateGeminiCLIUserAgent())
	gv := strings.TrimPrefix(runtime.Version(), "go")
	if gv == "" {
		gv = "unknown"
	}
	req.Header.Set("X-Goog-Api-Client", "gl-go/"+gv)
	req.Header.Set("Client-Metadata", "ideType=IDE_UNSPECIFIED,platform=PLATFORM_UNSPECIFIED,pluginType=GEMINI")
}
