package dto

// RepositoryResponse summarises a GitHub repository.
type RepositoryResponse struct {
	FullName      string `json:"full_name"`
	Name          string `json:"name"`
	Owner         string `json:"owner"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// RepositoryFileResponse is one allow-listed file in a repository tree.
type RepositoryFileResponse struct {
	Path string `json:"path"`
	Size int    `json:"size"`
	SHA  string `json:"sha"`
}

// RepositoryTreeResponse lists the importable files of a repository.
type RepositoryTreeResponse struct {
	FullName string                   `json:"full_name"`
	Branch   string                   `json:"branch"`
	Files    []RepositoryFileResponse `json:"files"`
}

// RepositoryContentResponse is the decoded text of a file.
type RepositoryContentResponse struct {
	FullName string `json:"full_name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// RepositorySearchQuery filters the user's repositories by name.
type RepositorySearchQuery struct {
	Query string `query:"q" validate:"required,max=100"`
}
