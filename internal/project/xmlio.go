package project

import (
	"encoding/xml"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// timeNow is replaced in tests for stable headers.
var timeNow = time.Now

// Header identifies an artifact file: what produced it, for which
// unit, and when.
type Header struct {
	XMLName xml.Name `xml:"header"`
	Info    string   `xml:"info,attr"`
	Name    string   `xml:"name,attr"`
	Time    string   `xml:"time,attr"`
}

type envelope struct {
	XMLName xml.Name `xml:"c-analysis"`
	Header  Header
	Body    interface{}
}

func newHeader(info, name string) Header {
	return Header{
		Info: info,
		Name: name,
		Time: timeNow().Format("2006-01-02 15:04:05"),
	}
}

// writeAnalysisXML writes body inside the c-analysis envelope.
func writeAnalysisXML(path, info, name string, body interface{}) error {
	b, err := xml.MarshalIndent(envelope{Header: newHeader(info, name), Body: body}, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", path)
	}
	b = append([]byte(xml.Header), b...)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// readAnalysisXML opens an artifact file and decodes the child
// element named elem into body.  A missing file or element is an
// error; persisted artifacts are read strictly.
func readAnalysisXML(path, elem string, body interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	inRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return errors.Errorf("%s: no %s element", path, elem)
		}
		if err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !inRoot {
			if start.Name.Local != "c-analysis" {
				return errors.Errorf("%s: root element %s, want c-analysis", path, start.Name.Local)
			}
			inRoot = true
			continue
		}
		if start.Name.Local == elem {
			if err := dec.DecodeElement(body, &start); err != nil {
				return errors.Wrapf(err, "decode %s in %s", elem, path)
			}
			return nil
		}
		if err := dec.Skip(); err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}
	}
}
