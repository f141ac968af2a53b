package gitrepo

import (
	"fmt"
	"strings"
)

const (
	sshProtocolPrefixConstant           = "ssh://"
	sshUserDelimiterConstant            = "@"
	sshPathDelimiterConstant            = ":"
	httpsProtocolPrefixConstant         = "https://"
	httpProtocolPrefixConstant          = "http://"
	gitUserPrefixConstant               = "git@"
	pathSeparatorConstant               = "/"
	gitSuffixConstant                   = ".git"
	remoteURLParseErrorTemplateConstant = "%s: %s"
	invalidRemoteURLMessageConstant     = "invalid remote url"
	requiredValueMessageConstant        = "value required"
)

// RemoteURL is a remote reduced to the parts that identify a hosted repository.
type RemoteURL struct {
	Host       string
	Repository string
}

// RemoteURLParseError indicates a remote string could not be parsed.
type RemoteURLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError RemoteURLParseError) Error() string {
	return fmt.Sprintf(remoteURLParseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseRemoteURL reduces ssh, scp-like and http(s) remotes to host and repository path.
// The repository path keeps every namespace segment and drops a trailing .git.
func ParseRemoteURL(remote string) (RemoteURL, error) {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: requiredValueMessageConstant}
	}

	switch {
	case strings.HasPrefix(trimmedRemote, sshProtocolPrefixConstant):
		return parseHostAndPath(remote, stripUser(strings.TrimPrefix(trimmedRemote, sshProtocolPrefixConstant)), pathSeparatorConstant)
	case strings.HasPrefix(trimmedRemote, httpsProtocolPrefixConstant):
		return parseHostAndPath(remote, stripUser(strings.TrimPrefix(trimmedRemote, httpsProtocolPrefixConstant)), pathSeparatorConstant)
	case strings.HasPrefix(trimmedRemote, httpProtocolPrefixConstant):
		return parseHostAndPath(remote, stripUser(strings.TrimPrefix(trimmedRemote, httpProtocolPrefixConstant)), pathSeparatorConstant)
	case strings.HasPrefix(trimmedRemote, gitUserPrefixConstant):
		return parseHostAndPath(remote, stripUser(trimmedRemote), sshPathDelimiterConstant)
	default:
		return RemoteURL{}, RemoteURLParseError{Input: remote, Message: invalidRemoteURLMessageConstant}
	}
}

// EquivalentRemoteURLs reports whether two remotes name the same hosted repository, so that
// git@host:team/app.git and https://host/team/app are treated as one. Unparseable remotes such as
// local paths are compared textually after trimming.
func EquivalentRemoteURLs(first string, second string) bool {
	firstRemote, firstError := ParseRemoteURL(first)
	secondRemote, secondError := ParseRemoteURL(second)
	if firstError == nil && secondError == nil {
		return strings.EqualFold(firstRemote.Host, secondRemote.Host) && firstRemote.Repository == secondRemote.Repository
	}
	return normalizeRemoteText(first) == normalizeRemoteText(second)
}

func stripUser(remote string) string {
	hostBoundary := strings.IndexAny(remote, pathSeparatorConstant+sshPathDelimiterConstant)
	userIndex := strings.Index(remote, sshUserDelimiterConstant)
	if userIndex == -1 || (hostBoundary != -1 && userIndex > hostBoundary) {
		return remote
	}
	return remote[userIndex+1:]
}

func parseHostAndPath(input string, remote string, delimiter string) (RemoteURL, error) {
	host, repositoryPath, found := strings.Cut(remote, delimiter)
	if !found && delimiter != pathSeparatorConstant {
		host, repositoryPath, found = strings.Cut(remote, pathSeparatorConstant)
	}
	if !found || len(host) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: input, Message: invalidRemoteURLMessageConstant}
	}

	if delimiter == pathSeparatorConstant {
		host, _, _ = strings.Cut(host, sshPathDelimiterConstant)
	}

	repository := strings.TrimSuffix(strings.Trim(repositoryPath, pathSeparatorConstant), gitSuffixConstant)
	if len(repository) == 0 {
		return RemoteURL{}, RemoteURLParseError{Input: input, Message: invalidRemoteURLMessageConstant}
	}
	return RemoteURL{Host: host, Repository: repository}, nil
}

func normalizeRemoteText(remote string) string {
	return strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(remote), pathSeparatorConstant), gitSuffixConstant)
}
