package category

type CreateCategoryDTO struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type CategoriesResponse struct {
	Categories []*Category `json:"categories"`
}
