// Package assets fetches and verifies the tokenizer model files the
// sentencepiece tokenizer depends on.
package assets

import "fmt"

// DefaultRepo is the Hugging Face repository downloaded when none is given.
const DefaultRepo = "google-t5/t5-small"

// DefaultBaseURL is the Hugging Face endpoint files are resolved against.
const DefaultBaseURL = "https://huggingface.co"

type Manifest struct {
	Repo  string      `json:"repo"`
	Files []AssetFile `json:"files"`
}

// AssetFile is one pinned remote file. An empty SHA256 is resolved from the
// server's metadata on first download and recorded in the lock manifest.
type AssetFile struct {
	Filename  string `json:"filename"`
	Revision  string `json:"revision"`
	SHA256    string `json:"sha256"`
	LocalName string `json:"local_name,omitempty"`
}

// Local returns the name the file is stored under.
func (f AssetFile) Local() string {
	if f.LocalName != "" {
		return f.LocalName
	}
	return f.Filename
}

func PinnedManifest(repo string) (Manifest, error) {
	switch repo {
	case "google-t5/t5-small", "google-t5/t5-base", "google/mt5-small":
		return Manifest{
			Repo: repo,
			Files: []AssetFile{
				{
					Filename:  "spiece.model",
					Revision:  "main",
					LocalName: "tokenizer.model",
				},
			},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for repo %q", repo)
	}
}
