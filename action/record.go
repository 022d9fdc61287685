// Package action defines the persisted action record and the executor that
// dispatches interaction methods against a page, settling afterwards.
package action

// Record kinds, in the order they typically appear in a recording.
const (
	KindCreate              = "create"
	KindNavigate            = "navigate"
	KindNavigateBack        = "navigateBack"
	KindNavigateForward     = "navigateForward"
	KindReload              = "reload"
	KindWait                = "wait"
	KindCondition           = "condition"
	KindAct                 = "act"
	KindGetListHTML         = "getListHtml"
	KindGetListHTMLByParent = "getListHtmlByParent"
	KindGetElementHTML      = "getElementHtml"
	KindClose               = "close"
)

// Record is one entry of a recording's actions.json. Artifact fields hold
// bare filenames under the recording's data/ directory, never paths.
type Record struct {
	Kind        string `json:"kind"`
	Timestamp   int64  `json:"timestamp"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	URL     string `json:"url,omitempty"`
	Timeout int    `json:"timeout,omitempty"`

	XPath     string   `json:"xpath,omitempty"`
	EncodedID string   `json:"encodedId,omitempty"`
	Method    string   `json:"method,omitempty"`
	Args      []string `json:"args,omitempty"`

	Pattern string `json:"pattern,omitempty"`
	Flags   string `json:"flags,omitempty"`
	Matched *bool  `json:"matched,omitempty"`

	Selector string `json:"selector,omitempty"`
	Count    int    `json:"count,omitempty"`

	Structure   string `json:"structure,omitempty"`
	XPathMap    string `json:"xpathMap,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"`
	ListFile    string `json:"listFile,omitempty"`
	ElementFile string `json:"elementFile,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	PostScripts []string `json:"postScripts,omitempty"`
}
