package shared

// OperandArgs is the argument object of the add and multiply tools.
type OperandArgs struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// MathResult is the success body of the arithmetic backend.
type MathResult struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Result    float64 `json:"result"`
}

type MathErrorBody struct {
	Error string `json:"error"`
}
