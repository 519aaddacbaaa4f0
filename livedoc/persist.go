package livedoc

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot format version. Bump when DecodedDocument changes shape.
const snapshotFormatVersion uint32 = 3

type SnapshotHeader struct {
	FormatVersion uint32 `msgpack:"format_version"`
	DocumentId    string `msgpack:"document_id"`
	Name          string `msgpack:"name"`
	LastModified  string `msgpack:"last_modified"`
}

func currentSnapshotHeader(doc *DecodedDocument) *SnapshotHeader {
	return &SnapshotHeader{
		FormatVersion: snapshotFormatVersion,
		DocumentId:    doc.DocumentId.String(),
		Name:          doc.Header.Name,
		LastModified:  doc.Header.LastModified,
	}
}

func (self *SnapshotHeader) String() string {
	return fmt.Sprintf(
		"Doc ID: %s\nName: %s\nLast Modified: %s\nFormat: %d",
		self.DocumentId,
		self.Name,
		self.LastModified,
		self.FormatVersion,
	)
}

// EncodeDocument serializes a snapshot as a versioned header followed by the
// document body.
func EncodeDocument(doc *DecodedDocument) ([]byte, error) {
	out := &bytes.Buffer{}
	encoder := msgpack.NewEncoder(out)
	if err := encoder.Encode(currentSnapshotHeader(doc)); err != nil {
		return nil, err
	}
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func DecodeDocument(in io.Reader) (*DecodedDocument, error) {
	decoder := msgpack.NewDecoder(in)

	header := &SnapshotHeader{}
	if err := decoder.Decode(header); err != nil {
		return nil, fmt.Errorf("decode snapshot header: %w", err)
	}
	if header.FormatVersion != snapshotFormatVersion {
		return nil, fmt.Errorf(
			"snapshot version mismatch: expected %d, found %d",
			snapshotFormatVersion,
			header.FormatVersion,
		)
	}

	doc := &DecodedDocument{}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode snapshot body: %w", err)
	}
	doc.buildIndex()
	return doc, nil
}

func SaveDocument(savePath string, doc *DecodedDocument) error {
	snapshotBytes, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(savePath, snapshotBytes, 0644)
}

func LoadDocument(loadPath string) (*DecodedDocument, error) {
	f, err := os.Open(loadPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeDocument(f)
}

// ReadSnapshotHeader decodes only the header, without the document body.
func ReadSnapshotHeader(loadPath string) (*SnapshotHeader, error) {
	f, err := os.Open(loadPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := &SnapshotHeader{}
	if err := msgpack.NewDecoder(f).Decode(header); err != nil {
		return nil, fmt.Errorf("decode snapshot header: %w", err)
	}
	return header, nil
}
