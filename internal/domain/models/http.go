package models

// SymbolRequest identifies one instrument in the consolidated API.
type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=12,alphanum"`
}
