package page

// ResolvePageArgs contains parameters for resolving one page
type ResolvePageArgs struct {
	Wiki   string  `json:"wiki,omitempty" jsonschema_description:"Wiki base URL or api.php URL (defaults to the configured wiki)"`
	Title  *string `json:"title,omitempty" jsonschema_description:"Page title, may carry ?args and #section; empty string means the homepage"`
	PageID *int    `json:"page_id,omitempty" jsonschema_description:"Numeric page ID, used when title is not given"`
}

// ResolvePageResult is the result of resolving a page
type ResolvePageResult struct {
	Wiki     string      `json:"wiki"`
	SiteName string      `json:"site_name,omitempty"`
	Page     *Descriptor `json:"page"`
	Error    string      `json:"error,omitempty"` // set when Status is false for a site or page failure
}

// RandomPageArgs contains parameters for picking a random article
type RandomPageArgs struct {
	Wiki string `json:"wiki,omitempty" jsonschema_description:"Wiki base URL or api.php URL (defaults to the configured wiki)"`
}

// SiteInfoArgs contains parameters for describing a wiki
type SiteInfoArgs struct {
	Wiki string `json:"wiki,omitempty" jsonschema_description:"Wiki base URL or api.php URL (defaults to the configured wiki)"`
}

// SiteInfoResult summarizes a wiki's cached metadata
type SiteInfoResult struct {
	API          string            `json:"api"`
	Name         string            `json:"name"`
	Homepage     string            `json:"homepage"`
	ArticlePath  string            `json:"article_path"`
	Script       string            `json:"script"`
	LogoURL      string            `json:"logo_url,omitempty"`
	Extensions   []string          `json:"extensions"`
	Interwiki    map[string]string `json:"interwiki"`
	InAllowList  bool              `json:"in_allow_list"`
	InBlockList  bool              `json:"in_block_list"`
	TextExtracts bool              `json:"text_extracts"`
	Warning      string            `json:"warning,omitempty"`
}
