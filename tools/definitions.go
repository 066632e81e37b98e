package tools

// AllTools contains all tool specifications for the wiki resolver MCP server.
// Tool descriptions follow a structured format for optimal LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	// ==========================================================================
	// PAGE TOOLS
	// ==========================================================================
	{
		Name:     "wiki_resolve_page",
		Method:   "ResolvePage",
		Title:    "Resolve Wiki Page",
		Category: "page",
		Description: `Resolve a page on any MediaWiki site into its canonical title, link, short summary and image.

USE WHEN: User mentions a wiki page ("what is X on the wiki", "link me to Template:Y", "[[en:Foo#History]]") and wants where it lives and what it says.

NOT FOR: Picking an arbitrary page (use wiki_random_page). Inspecting the wiki itself (use wiki_site_info).

PARAMETERS:
- wiki: Wiki base URL or api.php URL (optional, defaults to the configured wiki)
- title: Page title; may carry "?args" and "#section". Empty string resolves the homepage
- page_id: Numeric page ID (used when title is not given)

RETURNS: Descriptor with title, before_title (when a redirect, normalization or template hop changed it), id, link, file, description, section, interwiki_prefix and status. Redirects, interwiki prefixes and template documentation are followed. Results that fail moderation come back redacted.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "wiki_random_page",
		Method:   "RandomPage",
		Title:    "Random Wiki Page",
		Category: "page",
		Description: `Pick a random article from a wiki's main namespace and resolve it.

USE WHEN: User asks for "a random page", "surprise me", "any article from this wiki".

NOT FOR: A specific page (use wiki_resolve_page).

PARAMETERS:
- wiki: Wiki base URL or api.php URL (optional, defaults to the configured wiki)

RETURNS: The same descriptor as wiki_resolve_page.`,
		ReadOnly:  true,
		OpenWorld: true,
	},

	// ==========================================================================
	// SITE TOOLS
	// ==========================================================================
	{
		Name:     "wiki_site_info",
		Method:   "SiteInfo",
		Title:    "Wiki Site Info",
		Category: "site",
		Description: `Describe a wiki: API endpoint, name, homepage, installed extensions and interwiki prefixes.

USE WHEN: User asks "which wiki is this", "does this wiki support extracts", "what does the en: prefix point to", or a page result looks wrong and the site setup needs checking.

NOT FOR: Page content (use wiki_resolve_page).

PARAMETERS:
- wiki: Wiki base URL or api.php URL (optional, defaults to the configured wiki)

RETURNS: Site metadata from the siteinfo cache (refreshed after 12 hours), allow/block list membership and a warning when page summaries are unavailable.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
}
