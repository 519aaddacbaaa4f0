package livedoc

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/vmihailenco/msgpack/v5"
)

func TestSnapshotRoundTrip(t *testing.T) {
	doc := NewDecodedDocument(
		NewDocumentId("doc1"),
		DocumentHeader{
			Name:         "Test Doc",
			LastModified: "lm-v1",
			Version:      "v1",
			SessionToken: "session-v1",
		},
		[]*QueryView{
			{
				Query: QueryName("Main"),
				Root: &RawNode{
					Id:   "1:1",
					Name: "Main",
					Type: NodeTypeFrame,
					Children: []*RawNode{
						{
							Id:   "1:2",
							Name: "Label",
							Type: NodeTypeText,
							Text: "hello",
						},
					},
				},
			},
		},
		[]DocInfo{
			{Id: "branch1", Name: "Feature Branch"},
		},
		map[string][]byte{
			"logo": []byte("png image!"),
		},
		nil,
	)

	savePath := filepath.Join(t.TempDir(), "doc1.ld")
	assert.Equal(t, nil, SaveDocument(savePath, doc))

	loaded, err := LoadDocument(savePath)
	assert.Equal(t, nil, err)
	assert.Equal(t, doc.DocumentId, loaded.DocumentId)
	assert.Equal(t, doc.Header, loaded.Header)
	assert.Equal(t, "Feature Branch", loaded.Branches[0].Name)

	imageBytes, ok := loaded.Image("logo")
	assert.Equal(t, true, ok)
	assert.Equal(t, true, bytes.Equal([]byte("png image!"), imageBytes))

	// the index is rebuilt on load
	root := loaded.View(QueryName("Main"))
	assert.NotEqual(t, nil, root)
	assert.Equal(t, "hello", root.Children[0].Text)
}

func TestSnapshotHeaderOnly(t *testing.T) {
	doc := NewDecodedDocument(
		NewDocumentId("doc1"),
		DocumentHeader{
			Name:         "Test Doc",
			LastModified: "lm-v1",
			Version:      "v1",
		},
		nil,
		nil,
		nil,
		nil,
	)
	savePath := filepath.Join(t.TempDir(), "doc1.ld")
	assert.Equal(t, nil, SaveDocument(savePath, doc))

	header, err := ReadSnapshotHeader(savePath)
	assert.Equal(t, nil, err)
	assert.Equal(t, snapshotFormatVersion, header.FormatVersion)
	assert.Equal(t, "doc1", header.DocumentId)
	assert.Equal(t, "Test Doc", header.Name)
	assert.Equal(t, "lm-v1", header.LastModified)
}

func TestSnapshotVersionMismatch(t *testing.T) {
	out := &bytes.Buffer{}
	encoder := msgpack.NewEncoder(out)
	assert.Equal(t, nil, encoder.Encode(&SnapshotHeader{
		FormatVersion: snapshotFormatVersion + 1,
		DocumentId:    "doc1",
	}))
	assert.Equal(t, nil, encoder.Encode(&DecodedDocument{}))

	_, err := DecodeDocument(bytes.NewReader(out.Bytes()))
	assert.NotEqual(t, nil, err)
}
