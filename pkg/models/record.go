package models

// RawRecord is one untransformed record as returned by an upstream API.
//
// Field names and shapes are not fixed: the same logical field can appear
// under different names (or casings) depending on the dataset revision and
// the API that produced it. Numbers are decoded as json.Number so natural
// identifiers keep their exact textual form.
type RawRecord map[string]any
