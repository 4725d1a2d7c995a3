package lockfile

import "github.com/coreruntime/kernel/cmn/cos"

// wireDocument is Document's on-disk shape. Maps marshal with sorted keys
// under cos.JSON (jsoniter's encoding, like encoding/json, sorts map keys),
// which is what gives the lockfile its stable key order.
type wireDocument struct {
	Version   string                           `json:"version"`
	Workspace map[string]WorkspaceMemberConfig `json:"workspace,omitempty"`
	Packages  map[string]PackageIntegrity      `json:"packages,omitempty"`
	Remote    map[string]string                `json:"remote,omitempty"`
}

// Bytes serializes doc deterministically: map keys sorted, the top-level
// sections in the fixed order version, workspace, packages, remote,
// two-space indentation, trailing newline.
func Bytes(doc *Document) []byte {
	w := wireDocument{Version: doc.Version, Workspace: doc.Workspace, Packages: doc.Packages, Remote: doc.Remote}
	raw, err := cos.JSON.MarshalIndent(w, "", "  ")
	if err != nil {
		panic(err)
	}
	return append(raw, '\n')
}

func parse(raw []byte) (*Document, error) {
	var w wireDocument
	if err := cos.JSON.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	doc := newDocument()
	if w.Version != "" {
		doc.Version = w.Version
	}
	if w.Workspace != nil {
		doc.Workspace = w.Workspace
	}
	if w.Packages != nil {
		doc.Packages = w.Packages
	}
	if w.Remote != nil {
		doc.Remote = w.Remote
	}
	return doc, nil
}
