package bitbucket

import (
	"content-wiki/internal/config"
	"content-wiki/internal/environment"
	"content-wiki/internal/logging"
	"context"
	"fmt"
	"github.com/gfleury/go-bitbucket-v1"
	"path"
	"strings"
	"time"
)

// MarkdownFolder is the root-level folder of the repository whose markdown files are imported.
const MarkdownFolder = "markdowns/"

// Result represents a wrapper for paginated file paths retrieved from the Bitbucket API.
type Result struct {
	AnyFilePaths []any
	Error        error
}

// ApiServiceAdapter wraps an abstraction layer around the Bitbucket APIs
// used for listing repository files and reading their content.
type ApiServiceAdapter interface {
	GetRawContent(projectKey, repositorySlug, path string, localVarOptionals map[string]any) (*bitbucketv1.APIResponse, error)
	StreamFiles(projectKey, repositorySlug string, localVarOptionals map[string]any) (*bitbucketv1.APIResponse, error)
}

// ApiClient proxies requests to the embedded *bitbucketv1.APIClient.
type ApiClient struct {
	*bitbucketv1.APIClient
}

func (a *ApiClient) GetRawContent(projectKey, repositorySlug, path string, localVarOptionals map[string]any) (*bitbucketv1.APIResponse, error) {
	return a.DefaultApi.GetRawContent(projectKey, repositorySlug, path, localVarOptionals)
}

func (a *ApiClient) StreamFiles(projectKey, repositorySlug string, localVarOptionals map[string]any) (*bitbucketv1.APIResponse, error) {
	return a.DefaultApi.StreamFiles(projectKey, repositorySlug, localVarOptionals)
}

// Reader reads the markdown files of a Bitbucket repository.
type Reader interface {

	// ReadMarkdownFilePaths lists the paths of all markdown (.md) files below MarkdownFolder,
	// reading the file listing in pages of pageSize entries.
	ReadMarkdownFilePaths(projectName, repoName string, pageSize int) ([]string, error)

	// ReadFileContent reads the raw content of a single file. at selects a branch, tag or commit;
	// an empty at reads the default branch.
	ReadFileContent(projectName, repoName, filePath, at string) (string, error)
}

// RepositoryReader implements Reader on top of an ApiServiceAdapter.
type RepositoryReader struct {
	*environment.Env
	Adapter ApiServiceAdapter
}

// ensure RepositoryReader implements Reader
var _ Reader = &RepositoryReader{}

func (r *RepositoryReader) ReadFileContent(projectName, repoName, filePath, at string) (string, error) {
	if r.Adapter == nil {
		return "", fmt.Errorf("bitbucket API not initialized")
	}

	params := make(map[string]any)
	if len(at) > 0 {
		params["at"] = at
	}

	bitbucketResponse, err := r.Adapter.GetRawContent(projectName, repoName, filePath, params)
	if err != nil {
		return "", fmt.Errorf("error reading %s from Bitbucket: %w", filePath, err)
	}

	if bitbucketResponse == nil {
		return "", fmt.Errorf("bitbucket API response is nil")
	}

	return string(bitbucketResponse.Payload), nil
}

func (r *RepositoryReader) ReadMarkdownFilePaths(projectName, repoName string, pageSize int) ([]string, error) {
	if r.Adapter == nil {
		return nil, fmt.Errorf("bitbucket API not initialized")
	}

	m := make(map[string]any)
	m["start"] = 0
	m["limit"] = pageSize

	read := func() <-chan Result {
		outStream := make(chan Result)

		go func() {
			defer close(outStream)

			for {
				s := time.Now()
				bitbucketResponse, err := r.Adapter.StreamFiles(projectName, repoName, m)
				r.LogDebugf(logging.GetLogTypeImport(), "fetched file listing page starting at %v in %v", m["start"], time.Since(s))

				if err != nil {
					outStream <- Result{Error: fmt.Errorf("error reading file structure from Bitbucket: %w", err)}
					return
				}

				if bitbucketResponse == nil || bitbucketResponse.Values == nil {
					outStream <- Result{Error: fmt.Errorf("bitbucket API response is nil or has no paged values")}
					return
				}

				values, ok := bitbucketResponse.Values["values"]
				if !ok {
					outStream <- Result{Error: fmt.Errorf("bitbucket API response does not contain the property 'values'")}
					return
				}

				if values == nil {
					return
				}

				anyFilePaths, ok := values.([]any)
				if !ok {
					outStream <- Result{Error: fmt.Errorf("type conversion to slice of type any failed; received type: %T", values)}
					return
				}

				outStream <- Result{AnyFilePaths: anyFilePaths}

				isLastPage, lastPageOk := bitbucketResponse.Values["isLastPage"].(bool)
				if !lastPageOk {
					r.LogWarn(logging.GetLogTypeImport(), "bitbucket API response does not contain property 'isLastPage'")
					return
				}

				if isLastPage {
					return
				}

				nextPageStart, nextPageOk := bitbucketResponse.Values["nextPageStart"].(float64)
				if !nextPageOk {
					r.LogWarn(logging.GetLogTypeImport(), "bitbucket API response does not contain property 'nextPageStart'")
					return
				}

				m["start"] = int(nextPageStart)
			}
		}()

		return outStream
	}

	consume := func(results <-chan Result) ([]string, error) {
		filePaths := make([]string, 0)
		var err error

		// drains the stream so the reading goroutine can always finish
		for result := range results {
			if err != nil {
				continue
			}
			if result.Error != nil {
				err = result.Error
				continue
			}

			for _, v := range result.AnyFilePaths {
				fp, ok := v.(string)
				if !ok {
					err = fmt.Errorf("type conversion to string failed; received type: %T", v)
					break
				}

				if !strings.HasPrefix(fp, MarkdownFolder) || !strings.EqualFold(path.Ext(fp), ".md") {
					continue
				}

				filePaths = append(filePaths, fp)
			}
		}

		if err != nil {
			return nil, err
		}
		return filePaths, nil
	}

	return consume(read())
}

// InitBitbucket initializes the Bitbucket API with the provided configuration and creates an instance of *RepositoryReader
func InitBitbucket(c *config.Configuration, env *environment.Env) (*RepositoryReader, error) {
	env.LogInfo(logging.GetLogTypeInitialization(), "initializing Bitbucket API")

	if c.BitBucket.Url == nil {
		return nil, fmt.Errorf("bitbucket url is not set")
	}

	bitbucketConfig := bitbucketv1.Configuration{
		BasePath:  c.BitBucket.Url.String(),
		Host:      c.BitBucket.Url.Host,
		Scheme:    c.BitBucket.Url.Scheme,
		UserAgent: "content-wiki",
	}

	ctx := context.Background()

	if len(c.BitBucket.AccessToken) > 0 {
		ctx = context.WithValue(ctx, bitbucketv1.ContextAccessToken, c.BitBucket.AccessToken)

	} else if len(c.BitBucket.User) > 0 && len(c.BitBucket.Password) > 0 {
		ctx = context.WithValue(ctx, bitbucketv1.ContextBasicAuth, bitbucketv1.BasicAuth{
			UserName: c.BitBucket.User,
			Password: c.BitBucket.Password,
		})
	}

	bitbucketApi := bitbucketv1.NewAPIClient(ctx, &bitbucketConfig)

	_, err := bitbucketApi.DefaultApi.GetPullRequestCount()
	if err != nil {
		return nil, err
	}

	env.LogDebug(logging.GetLogTypeInitialization(), "Bitbucket API initialized")

	return &RepositoryReader{env, &ApiClient{bitbucketApi}}, nil
}
