package metrics

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs, used to add
// contextual information such as transport type or error kind.
type Dimension map[string]string
