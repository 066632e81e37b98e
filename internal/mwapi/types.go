package mwapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flag decodes the presence-style booleans of the JSON format version 1,
// where `"missing": ""` means true and an absent key means false.
type Flag bool

// UnmarshalJSON treats any present value other than false or null as set.
func (f *Flag) UnmarshalJSON(data []byte) error {
	v := bytes.TrimSpace(data)
	*f = Flag(!bytes.Equal(v, []byte("false")) && !bytes.Equal(v, []byte("null")))
	return nil
}

// APIError is the error object the action API returns in place of a result.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wiki API error %s: %s", e.Code, e.Info)
}

// TitlePair is one entry of the redirects or normalized lists.
type TitlePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// InterwikiTitle reports a requested title that carries an interwiki prefix.
type InterwikiTitle struct {
	Title string `json:"title"`
	IW    string `json:"iw"`
}

// ImageInfo is the part of prop=imageinfo the resolver reads.
type ImageInfo struct {
	URL string `json:"url"`
}

// Page is one entry of query.pages.
type Page struct {
	PageID        int               `json:"pageid"`
	NS            int               `json:"ns"`
	Title         *string           `json:"title"`
	Missing       Flag              `json:"missing"`
	Invalid       Flag              `json:"invalid"`
	InvalidReason string            `json:"invalidreason"`
	Known         Flag              `json:"known"`
	Special       Flag              `json:"special"`
	FullURL       string            `json:"fullurl"`
	Extract       *string           `json:"extract"`
	ImageInfo     []ImageInfo       `json:"imageinfo"`
	PageProps     map[string]string `json:"pageprops"`
}

// FileURL returns the first image URL, if the page has image info.
func (p Page) FileURL() (string, bool) {
	if len(p.ImageInfo) == 0 || p.ImageInfo[0].URL == "" {
		return "", false
	}
	return p.ImageInfo[0].URL, true
}

// SearchHit is one entry of list=search.
type SearchHit struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// RandomHit is one entry of list=random.
type RandomHit struct {
	ID    int    `json:"id"`
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// Query is the query object of an action=query response.
type Query struct {
	Redirects  []TitlePair      `json:"redirects"`
	Normalized []TitlePair      `json:"normalized"`
	Interwiki  []InterwikiTitle `json:"interwiki"`
	Pages      map[string]Page  `json:"pages"`
	Search     []SearchHit      `json:"search"`
	Random     []RandomHit      `json:"random"`
}

type queryResponse struct {
	Query *Query    `json:"query"`
	Error *APIError `json:"error"`
}

type parseResponse struct {
	Parse *struct {
		Title    string `json:"title"`
		PageID   int    `json:"pageid"`
		Text     star   `json:"text"`
		Wikitext star   `json:"wikitext"`
	} `json:"parse"`
	Error *APIError `json:"error"`
}

type star struct {
	Content string `json:"*"`
}

// General is the meta=siteinfo general block.
type General struct {
	SiteName    string `json:"sitename"`
	Server      string `json:"server"`
	ArticlePath string `json:"articlepath"`
	Script      string `json:"script"`
	Logo        string `json:"logo"`
	Lang        string `json:"lang"`
	Generator   string `json:"generator"`
}

// SiteInfo is a decoded meta=siteinfo response. The list entries stay raw so
// a malformed entry can be skipped without losing the rest.
type SiteInfo struct {
	General          General                    `json:"general"`
	Namespaces       map[string]json.RawMessage `json:"namespaces"`
	NamespaceAliases []json.RawMessage          `json:"namespacealiases"`
	InterwikiMap     []json.RawMessage          `json:"interwikimap"`
	Extensions       []json.RawMessage          `json:"extensions"`
}

// Namespace is one entry of siteinfo namespaces or namespacealiases.
type Namespace struct {
	ID        int     `json:"id"`
	Local     *string `json:"*"`
	Canonical *string `json:"canonical"`
}

// InterwikiEntry is one entry of siteinfo interwikimap.
type InterwikiEntry struct {
	Prefix string `json:"prefix"`
	URL    string `json:"url"`
}

// Extension is one entry of siteinfo extensions.
type Extension struct {
	Name string `json:"name"`
}

// DecodeSiteInfo decodes a raw siteinfo response as stored in the site cache.
func DecodeSiteInfo(blob []byte) (*SiteInfo, error) {
	var resp struct {
		Query *SiteInfo `json:"query"`
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(blob, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Query == nil {
		return nil, fmt.Errorf("response has no query object")
	}
	return resp.Query, nil
}
