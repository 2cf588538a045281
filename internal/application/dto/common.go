package dto

// PageRequest paginación por offset; Limit máximo 100.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage completa Limit en 20 si no vino.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

// FetchLimit filas a pedir al repositorio: una de más para saber si hay otra página.
func (p PageRequest) FetchLimit() int { return p.Limit + 1 }

// Page arma los metadatos a partir de las filas obtenidas con FetchLimit.
func (p PageRequest) Page(fetched int) PageResponse {
	out := PageResponse{Limit: p.Limit, Offset: p.Offset, HasMore: fetched > p.Limit}
	if out.HasMore {
		out.NextOffset = p.Offset + p.Limit
	}
	return out
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset int  `json:"next_offset,omitempty"`
}

// ErrorResponse cuerpo de error HTTP. Details lista cada falla cuando hay varias.
type ErrorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
