package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	gh "github.com/google/go-github/v68/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	perPage  = 100
	maxPages = 10
)

var (
	// ErrBinaryContent indicates the requested file does not sniff as text.
	ErrBinaryContent = errors.New("file content is not text")
	// ErrNotAFile indicates the requested path is a directory.
	ErrNotAFile = errors.New("path is not a file")
	// ErrUnsupportedFile indicates the file extension is not importable.
	ErrUnsupportedFile = errors.New("file type not supported")
	// ErrNotFound indicates GitHub returned 404.
	ErrNotFound = errors.New("github resource not found")
	// ErrUnauthorized indicates GitHub rejected the access token.
	ErrUnauthorized = errors.New("github token rejected")
)

// DefaultExtensions lists the source file extensions offered for import.
var DefaultExtensions = []string{
	".c", ".cc", ".cpp", ".cs", ".css", ".go", ".h", ".hpp", ".html", ".java",
	".js", ".jsx", ".kt", ".lua", ".php", ".py", ".rb", ".rs", ".scala", ".sh",
	".sql", ".swift", ".ts", ".tsx",
}

// Repository summarises a repository the user can read.
type Repository struct {
	FullName      string
	Name          string
	Owner         string
	Description   string
	Private       bool
	DefaultBranch string
	HTMLURL       string
}

// File is a blob entry of a repository tree.
type File struct {
	Path string
	Size int
	SHA  string
}

// Tree is the importable subset of a repository tree.
type Tree struct {
	FullName string
	Branch   string
	Files    []File
}

// Option customises a Client.
type Option func(*Client) error

// WithBaseURL points the client at another API root, such as GitHub Enterprise
// or a test server.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse github base url: %w", err)
		}
		c.gh.BaseURL = parsed
		return nil
	}
}

// WithExtensions replaces the import allow-list.
func WithExtensions(extensions []string) Option {
	return func(c *Client) error {
		c.allowed = extensionSet(extensions)
		return nil
	}
}

// Client wraps the GitHub REST API for repository import.
type Client struct {
	gh      *gh.Client
	allowed map[string]struct{}
	tracer  trace.Tracer
}

// NewClient authenticates with a user access token.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := &Client{
		gh:      gh.NewClient(oauth2.NewClient(ctx, ts)),
		allowed: extensionSet(DefaultExtensions),
		tracer:  otel.Tracer("github.com/noah-isme/coding-coach-api/pkg/github"),
	}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// Login returns the authenticated user's login.
func (c *Client) Login(ctx context.Context) (string, error) {
	ctx, span := c.tracer.Start(ctx, "github.user")
	defer span.End()

	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", spanError(span, fmt.Errorf("get github user: %w", err))
	}
	return user.GetLogin(), nil
}

// ListRepositories returns every repository the user owns or collaborates on.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	ctx, span := c.tracer.Start(ctx, "github.repos.list")
	defer span.End()

	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var repos []Repository
	for page := 0; page < maxPages; page++ {
		items, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, spanError(span, fmt.Errorf("list github repositories: %w", err))
		}
		for _, item := range items {
			repos = append(repos, newRepository(item))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	span.SetAttributes(attribute.Int("github.repositories", len(repos)))
	return repos, nil
}

// SearchRepositories finds repositories owned by login whose name matches query.
func (c *Client) SearchRepositories(ctx context.Context, login, query string) ([]Repository, error) {
	ctx, span := c.tracer.Start(ctx, "github.repos.search")
	defer span.End()

	q := fmt.Sprintf("%s in:name user:%s", strings.TrimSpace(query), login)
	result, _, err := c.gh.Search.Repositories(ctx, q, &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: perPage}})
	if err != nil {
		return nil, spanError(span, fmt.Errorf("search github repositories: %w", err))
	}

	repos := make([]Repository, 0, len(result.Repositories))
	for _, item := range result.Repositories {
		repos = append(repos, newRepository(item))
	}
	return repos, nil
}

// Tree returns the allow-listed files on the repository's default branch.
func (c *Client) Tree(ctx context.Context, owner, repo string) (Tree, error) {
	ctx, span := c.tracer.Start(ctx, "github.tree", trace.WithAttributes(attribute.String("github.repository", owner+"/"+repo)))
	defer span.End()

	repository, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return Tree{}, spanError(span, fmt.Errorf("get github repository: %w", err))
	}
	branch := repository.GetDefaultBranch()

	tree, _, err := c.gh.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return Tree{}, spanError(span, fmt.Errorf("get github tree: %w", err))
	}

	files := make([]File, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || !c.Allowed(entry.GetPath()) {
			continue
		}
		files = append(files, File{Path: entry.GetPath(), Size: entry.GetSize(), SHA: entry.GetSHA()})
	}

	return Tree{FullName: repository.GetFullName(), Branch: branch, Files: files}, nil
}

// File returns the decoded text of path.
func (c *Client) File(ctx context.Context, owner, repo, filePath string) (string, error) {
	if !c.Allowed(filePath) {
		return "", ErrUnsupportedFile
	}

	ctx, span := c.tracer.Start(ctx, "github.contents", trace.WithAttributes(
		attribute.String("github.repository", owner+"/"+repo),
		attribute.String("github.path", filePath),
	))
	defer span.End()

	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, filePath, nil)
	if err != nil {
		return "", spanError(span, fmt.Errorf("get github contents: %w", err))
	}
	if file == nil {
		return "", ErrNotAFile
	}

	content, err := file.GetContent()
	if err != nil {
		return "", spanError(span, fmt.Errorf("decode github contents: %w", err))
	}
	if content != "" && !isText(content) {
		return "", ErrBinaryContent
	}
	return content, nil
}

// Allowed reports whether filePath has an importable extension.
func (c *Client) Allowed(filePath string) bool {
	_, ok := c.allowed[strings.ToLower(path.Ext(filePath))]
	return ok
}

func isText(content string) bool {
	for mt := mimetype.Detect([]byte(content)); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

func newRepository(item *gh.Repository) Repository {
	return Repository{
		FullName:      item.GetFullName(),
		Name:          item.GetName(),
		Owner:         item.GetOwner().GetLogin(),
		Description:   item.GetDescription(),
		Private:       item.GetPrivate(),
		DefaultBranch: item.GetDefaultBranch(),
		HTMLURL:       item.GetHTMLURL(),
	}
}

func extensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func spanError(span trace.Span, err error) error {
	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		switch apiErr.Response.StatusCode {
		case http.StatusUnauthorized:
			err = fmt.Errorf("%w: %w", ErrUnauthorized, err)
		case http.StatusNotFound:
			err = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
