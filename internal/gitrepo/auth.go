package gitrepo

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const (
	gitUsernameEnvironmentVariableConstant = "GITSPLIT_GIT_USERNAME"
	gitTokenEnvironmentVariableConstant    = "GITSPLIT_GIT_TOKEN"
	githubTokenEnvironmentVariableConstant = "GITHUB_TOKEN"
	githubCLITokenEnvironmentVariable      = "GH_TOKEN"
	defaultTokenUsernameConstant           = "x-access-token"
	httpProtocolConstant                   = "http"
	httpsProtocolConstant                  = "https"
	endpointParseErrorTemplateConstant     = "parse remote url %s: %w"
)

// authenticationForURL returns HTTP basic credentials from the environment for http(s) remotes.
// Other protocols rely on go-git defaults such as the SSH agent.
func authenticationForURL(remoteURL string) (transport.AuthMethod, error) {
	trimmedURL := strings.TrimSpace(remoteURL)
	if len(trimmedURL) == 0 {
		return nil, nil
	}

	endpoint, endpointError := transport.NewEndpoint(trimmedURL)
	if endpointError != nil {
		return nil, fmt.Errorf(endpointParseErrorTemplateConstant, trimmedURL, endpointError)
	}

	switch endpoint.Protocol {
	case httpProtocolConstant, httpsProtocolConstant:
		token := firstNonEmpty(
			os.Getenv(gitTokenEnvironmentVariableConstant),
			os.Getenv(githubTokenEnvironmentVariableConstant),
			os.Getenv(githubCLITokenEnvironmentVariable),
		)
		if len(token) == 0 {
			return nil, nil
		}
		username := strings.TrimSpace(os.Getenv(gitUsernameEnvironmentVariableConstant))
		if len(username) == 0 {
			username = defaultTokenUsernameConstant
		}
		return &http.BasicAuth{Username: username, Password: token}, nil
	default:
		return nil, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}
