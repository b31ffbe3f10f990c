package member

type CreateMemberDTO struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

type ChangeRoleDTO struct {
	Role string `json:"role" validate:"required"`
}

type MembersResponse struct {
	Members []*Member `json:"members"`
}
