package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// PagePlaceholder is replaced by the page number in a search URL template
	PagePlaceholder = "{page}"

	// DefaultSearchURL lists used cars around São Paulo, newest first
	DefaultSearchURL = "https://www.icarros.com.br/ache/listaanuncios.jsp?bid=1&pag={page}&lis=0&ord=24&sop=sta_1.1_-cid_3632.1_-esc_2.1_-rai_0.1_"
)

// ValidateSearchURL checks that a template is an absolute http(s) URL with a page placeholder
func ValidateSearchURL(template string) error {
	if !strings.Contains(template, PagePlaceholder) {
		return fmt.Errorf("search URL %q has no %s placeholder", template, PagePlaceholder)
	}

	parsedURL, err := url.Parse(PageURL(template, 1))
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("search URL %q must be http or https", template)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL %q has no host", template)
	}
	return nil
}

// PageURL renders the search URL for a 1-based page number
func PageURL(template string, page int) string {
	return strings.ReplaceAll(template, PagePlaceholder, strconv.Itoa(page))
}

// Host returns the host name of a search URL template, used to restrict fetching
func Host(template string) string {
	parsedURL, err := url.Parse(PageURL(template, 1))
	if err != nil {
		return ""
	}
	return parsedURL.Hostname()
}
