package calendar

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`      // номер страницы (с 1)
	PageSize   int  `json:"page_size"` // количество элементов на странице
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Paginate возвращает срез items для указанной страницы и метаданные.
// page нумеруется с 1; некорректные page/pageSize заменяются дефолтами,
// pageSize сверху ограничен MaxPageSize.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	page, pageSize = PageParams(page, pageSize)

	total := len(items)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return NewPage(items[start:end], page, pageSize, total)
}

// NewPage собирает страницу из уже выбранных элементов (например, LIMIT/OFFSET в БД).
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	page, pageSize = PageParams(page, pageSize)
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
		HasNext:    page*pageSize < total,
		HasPrev:    page > 1,
	}
}

// PageParams подставляет дефолты вместо некорректных page/pageSize
// и ограничивает pageSize сверху MaxPageSize.
func PageParams(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize
}
