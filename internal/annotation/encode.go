package annotation

// Encode renders r as a wire annotation. Tags are packed against vocab at
// this point and nowhere else.
func Encode(r Record, vocab *Vocabulary) map[string]any {
	b := r.Common()
	out := r.geometry()
	out["type"] = string(r.Kind())
	out["id"] = b.ID
	if b.Description != "" {
		out["description"] = b.Description
	}
	if len(b.Segments) > 0 {
		out["segments"] = []any{segmentStrings(b.Segments)}
	}
	if vocab.Len() > 0 {
		out["props"] = vocab.Props(b.Tags)
	}
	if b.ParentID != "" {
		out["parentId"] = b.ParentID
	}
	return out
}

// EncodeAll converts records to viewer units and encodes them in order.
func EncodeAll(records []Record, vocab *Vocabulary, viewerResolution []float64) ([]any, error) {
	out := make([]any, 0, len(records))
	for _, r := range records {
		v, err := ToViewer(r, viewerResolution)
		if err != nil {
			return nil, err
		}
		out = append(out, Encode(v, vocab))
	}
	return out, nil
}
