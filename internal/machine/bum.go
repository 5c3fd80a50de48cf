package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/xsd/pkg/xmlstream"
	"github.com/jacoelho/xsd/pkg/xmltext"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/resolveerr"
)

const (
	// RefinesElement is the element declaring which machine this one refines.
	RefinesElement = "org.eventb.core.refinesMachine"
	// TargetAttribute holds the refined machine's name on RefinesElement.
	TargetAttribute = "org.eventb.core.target"

	maxMetadataDepth = 256
)

// BumReader reads refinement metadata from .bum files.
type BumReader struct {
	open func(name string) (io.ReadCloser, error)
}

// NewBumReader returns a reader that opens files from the local filesystem.
func NewBumReader() *BumReader {
	return &BumReader{open: func(name string) (io.ReadCloser, error) { return os.Open(name) }}
}

// NewBumReaderWithOpener returns a reader that obtains file contents from open.
func NewBumReaderWithOpener(open func(name string) (io.ReadCloser, error)) *BumReader {
	return &BumReader{open: open}
}

// RefinesTarget returns the machine c declares it refines. ok is false when c
// refines nothing. A file that is not well-formed XML is a MalformedInput
// error: skipping it could silently select the wrong machine.
func (r *BumReader) RefinesTarget(ctx context.Context, c Candidate) (target string, ok bool, err error) {
	logger := ctxlog.FromContext(ctx)

	f, err := r.open(c.Path)
	if err != nil {
		return "", false, resolveerr.IO(c.Path, err, "open machine file %s", c.Path)
	}
	defer f.Close()

	target, ok, err = ParseRefinesTarget(f)
	if err != nil {
		return "", false, resolveerr.Malformed(c.Path, err, "failed to parse .bum file %s", c.Path)
	}
	logger.Debug("Read machine metadata.", "machine", c.Name, "refines", target)
	return target, ok, nil
}

// ParseRefinesTarget streams an Event-B machine document and returns the target
// of its first refines declaration. The whole document is consumed so that
// malformed trailing content is still reported.
func ParseRefinesTarget(src io.Reader) (string, bool, error) {
	reader, err := xmlstream.NewStringReader(src, xmltext.MaxDepth(maxMetadataDepth))
	if err != nil {
		return "", false, fmt.Errorf("xml reader: %w", err)
	}

	var (
		target   string
		found    bool
		rootSeen bool
		depth    int
	)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false, fmt.Errorf("xml read: %w", err)
		}
		switch ev.Kind {
		case xmlstream.EventEndElement:
			depth--
			continue
		case xmlstream.EventStartElement:
			depth++
		default:
			continue
		}
		rootSeen = true
		if found || ev.Name.Local != RefinesElement {
			continue
		}
		found = true
		for _, attr := range ev.Attrs {
			if attr.LocalName() == TargetAttribute {
				target = attr.Value()
				break
			}
		}
	}

	if !rootSeen {
		return "", false, errors.New("document has no root element")
	}
	if depth != 0 {
		return "", false, errors.New("unexpected end of document")
	}
	return target, target != "", nil
}
