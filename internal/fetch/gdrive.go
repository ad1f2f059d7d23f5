package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var driveHosts = map[string]bool{
	"drive.google.com": true,
	"docs.google.com":  true,
}

var drivePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/file/d/(.*?)/(edit|view)$`),
	regexp.MustCompile(`^/file/u/[0-9]+/d/(.*?)/(edit|view)$`),
	regexp.MustCompile(`^/document/d/(.*?)/(edit|htmlview|view)$`),
	regexp.MustCompile(`^/document/u/[0-9]+/d/(.*?)/(edit|htmlview|view)$`),
	regexp.MustCompile(`^/presentation/d/(.*?)/(edit|htmlview|view)$`),
	regexp.MustCompile(`^/presentation/u/[0-9]+/d/(.*?)/(edit|htmlview|view)$`),
	regexp.MustCompile(`^/spreadsheets/d/(.*?)/(edit|htmlview|view)$`),
	regexp.MustCompile(`^/spreadsheets/u/[0-9]+/d/(.*?)/(edit|htmlview|view)$`),
}

var (
	confirmHrefPattern  = regexp.MustCompile(`href="(/uc\?export=download[^"]+)`)
	downloadFormPattern = regexp.MustCompile(`id="download-form" action="(.+?)"`)
	downloadURLPattern  = regexp.MustCompile(`"downloadUrl":"([^"]+)`)
	driveErrorPattern   = regexp.MustCompile(`<p class="uc-error-subcaption">(.*)</p>`)
)

// ParseDriveURL extracts the file id from a Google Drive sharing link and
// reports whether the link already points at the direct download endpoint.
// The id is empty for anything that is not a Drive link.
func ParseDriveURL(raw string) (id string, direct bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	direct = strings.HasSuffix(u.Path, "/uc")
	if !driveHosts[u.Hostname()] {
		return "", direct
	}
	if v := u.Query().Get("id"); v != "" {
		return v, direct
	}
	for _, p := range drivePathPatterns {
		if m := p.FindStringSubmatch(u.Path); m != nil {
			return m[1], direct
		}
	}
	return "", direct
}

// DriveDownloadURL is the direct download endpoint for a Drive file id.
func DriveDownloadURL(id string) string {
	return "https://drive.google.com/uc?id=" + url.QueryEscape(id)
}

// ConfirmationURL finds the real download link in the interstitial page
// Drive serves for files too large to virus-scan.
func ConfirmationURL(page string) (string, error) {
	for _, line := range strings.Split(page, "\n") {
		if m := confirmHrefPattern.FindStringSubmatch(line); m != nil {
			return strings.ReplaceAll("https://docs.google.com"+m[1], "&amp;", "&"), nil
		}
		if m := downloadFormPattern.FindStringSubmatch(line); m != nil {
			return strings.ReplaceAll(m[1], "&amp;", "&"), nil
		}
		if m := downloadURLPattern.FindStringSubmatch(line); m != nil {
			u := strings.ReplaceAll(m[1], `\u003d`, "=")
			return strings.ReplaceAll(u, `\u0026`, "&"), nil
		}
		if m := driveErrorPattern.FindStringSubmatch(line); m != nil {
			return "", fmt.Errorf("drive refused the download: %s", m[1])
		}
	}
	return "", errors.New("no public download link in drive confirmation page")
}
