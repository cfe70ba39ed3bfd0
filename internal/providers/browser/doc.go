/*
Package browser drives a headless Chrome over the DevTools protocol.

# Overview

A Provider owns the browser Session. With reuse enabled, one Session is
shared by every fetch and relaunched only after it disconnects. Each fetch
attempt opens its own Page, so concurrent fetches never share a tab.

# Launch profiles

  - local: system Chrome with the sandbox disabled for containers.
  - packaged: a pinned Chromium build fetched into the local cache, with
    single-process and low-memory switches for small hosted instances.

# Resource filtering

Pages take a declarative ResourceFilter. Every request the tab issues is
paused by the Fetch domain and either aborted or continued unchanged:

	page, err := session.NewPage(ctx, browser.PageOptions{
		Width:     1024,
		Height:    768,
		UserAgent: ua,
		Filter:    browser.AssetFilter(),
	})

# Response capture

ClickAndWaitResponse arms its network listener before dispatching the
click, so a response that comes back within milliseconds is not lost.
*/
package browser
