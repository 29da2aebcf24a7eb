package circulation

type IssuePayload struct {
	BookID int  `json:"book_id" form:"book_id" validate:"required,min=1"`
	UserID int  `json:"user_id" form:"user_id" validate:"required,min=1"`
	Days   *int `json:"days,omitempty" form:"days" validate:"omitempty,min=1,max=90"`
	// DueDate is a calendar day (YYYY-MM-DD); the loan is due at the end of it.
	DueDate *string `json:"due_date,omitempty" form:"due_date" validate:"omitempty,date" mod:"trim"`
	Notes   *string `json:"notes,omitempty" form:"notes" validate:"omitempty,max=1000" mod:"trim"`
}

type ReturnPayload struct {
	Notes *string `json:"notes,omitempty" form:"notes" validate:"omitempty,max=1000" mod:"trim"`
}

type ListTransactionsQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=500"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=Issued Returned Overdue"`
	UserID *int    `query:"user_id" json:"user_id,omitempty" validate:"omitempty,min=1"`
	BookID *int    `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1"`
}

type ListOpenTransactionsQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" mod:"trim"`
}
