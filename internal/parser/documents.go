package parser

import "fmt"

// Keys read from design and code responses.
const (
	FunctionalDocKey = "functional_doc"
	TechnicalDocKey  = "technical_doc"
	FilesKey         = "files"
)

// DesignFields holds the two sections of a design document response.
type DesignFields struct {
	FunctionalDoc string
	TechnicalDoc  string
}

// DesignDocument parses a design response.
//
// The response must be a JSON object. Present keys must hold strings and a
// missing key reads as "". A response with neither key is Empty.
func DesignDocument(raw any) Result[DesignFields] {
	p := Classify(raw)
	if p.Shape != ShapeSingleObject {
		return failed(DesignFields{}, designReason(p))
	}

	var fields DesignFields
	var found bool
	for key, dst := range map[string]*string{
		FunctionalDocKey: &fields.FunctionalDoc,
		TechnicalDocKey:  &fields.TechnicalDoc,
	} {
		v, present := p.Object[key]
		if !present || v == nil {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			return failed(DesignFields{}, fmt.Sprintf("%s is %T, want string", key, v))
		}
		*dst = s
		found = true
	}

	if !found {
		return empty(DesignFields{}, "response has no design sections")
	}
	return ok(fields)
}

func designReason(p Payload) string {
	switch p.Shape {
	case ShapeStructured:
		return "design response is a list, want object"
	case ShapeProse:
		return "design response is not JSON"
	default:
		return p.Reason
	}
}

// GeneratedCode parses a code response into a filename to content map.
//
// The response must be a JSON object whose "files" key maps filenames to
// string contents. A missing or empty "files" is Empty.
func GeneratedCode(raw any) Result[map[string]string] {
	p := Classify(raw)
	if p.Shape != ShapeSingleObject {
		return failed(map[string]string{}, codeReason(p))
	}

	v, present := p.Object[FilesKey]
	if !present || v == nil {
		return empty(map[string]string{}, "response has no files key")
	}

	obj, isObj := v.(map[string]any)
	if !isObj {
		return failed(map[string]string{}, fmt.Sprintf("files is %T, want object", v))
	}
	if len(obj) == 0 {
		return empty(map[string]string{}, "no files generated")
	}

	files := make(map[string]string, len(obj))
	for name, content := range obj {
		s, isStr := content.(string)
		if !isStr {
			return failed(map[string]string{}, fmt.Sprintf("file %q content is %T, want string", name, content))
		}
		if name == "" {
			return failed(map[string]string{}, "file with empty name")
		}
		files[name] = s
	}
	return ok(files)
}

func codeReason(p Payload) string {
	switch p.Shape {
	case ShapeStructured:
		return "code response is a list, want object"
	case ShapeProse:
		return "code response is not JSON"
	default:
		return p.Reason
	}
}
