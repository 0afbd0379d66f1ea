package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/yeisme/arca/pkg/configs"
)

const (
	// nativePrefix Google 原生文档（Docs/Sheets/Slides）的 MIME 前缀，没有固定字节表示.
	nativePrefix = "application/vnd.google-apps"
	folderMime   = "application/vnd.google-apps.folder"
	exportMime   = "application/pdf"
	listFields   = "nextPageToken, files(id, name, mimeType, size, md5Checksum)"
)

// Drive 基于 Google Drive v3 API 的远端来源.
type Drive struct {
	srv      *drive.Service
	pageSize int64
}

// CredentialsEnv 未配置 credentials_json 时读取的服务账号 JSON 环境变量.
const CredentialsEnv = "GOOGLE_CREDENTIALS_JSON"

// NewDrive 按配置的凭据创建 Drive 来源，extra 追加在认证选项之后.
func NewDrive(ctx context.Context, cfg configs.DriveConfig, pageSize int64, extra ...option.ClientOption) (*Drive, error) {
	auth, err := driveAuth(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, append([]option.ClientOption{auth}, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return NewDriveWithService(srv, pageSize), nil
}

// driveAuth 依次尝试服务账号 JSON、凭据文件与 API key.
func driveAuth(ctx context.Context, cfg configs.DriveConfig) (option.ClientOption, error) {
	raw := cfg.CredentialsJSON
	if raw == "" {
		raw = os.Getenv(CredentialsEnv)
	}

	if raw != "" {
		return serviceAccount(ctx, []byte(raw))
	}

	credData, err := os.ReadFile(cfg.CredentialsFile)

	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && cfg.APIKey != "":
		return option.WithAPIKey(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(credData, &head); err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	if google.CredentialsType(head.Type) == google.ServiceAccount {
		return serviceAccount(ctx, credData)
	}

	return oauthClient(ctx, credData, cfg.TokenFile)
}

func serviceAccount(ctx context.Context, data []byte) (option.ClientOption, error) {
	creds, err := google.CredentialsFromJSONWithType(ctx, data, google.ServiceAccount, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	return option.WithCredentials(creds), nil
}

// oauthClient 使用 OAuth 客户端凭据与已授权的 token 文件.
func oauthClient(ctx context.Context, credData []byte, tokenFile string) (option.ClientOption, error) {
	oauthCfg, err := google.ConfigFromJSON(credData, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	tokenData, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read drive token: %w", err)
	}

	var token oauth2.Token
	if err := sonic.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parse drive token: %w", err)
	}

	return option.WithTokenSource(oauthCfg.TokenSource(ctx, &token)), nil
}

// NewDriveWithService 使用已有的 drive.Service 创建来源.
func NewDriveWithService(srv *drive.Service, pageSize int64) *Drive {
	if pageSize <= 0 || pageSize > configs.DefaultRemotePageSize {
		pageSize = configs.DefaultRemotePageSize
	}

	return &Drive{srv: srv, pageSize: pageSize}
}

// ListPage 列举文件夹中未删除的文件，跳过子文件夹.
func (d *Drive) ListPage(ctx context.Context, folder, pageToken string) (Page, error) {
	call := d.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folder))).
		PageSize(d.pageSize).
		Fields(listFields).
		Context(ctx)

	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return Page{}, fmt.Errorf("drive list: %w", err)
	}

	page := Page{NextToken: resp.NextPageToken, Items: make([]Item, 0, len(resp.Files))}

	for _, f := range resp.Files {
		if f.MimeType == folderMime {
			continue
		}

		page.Items = append(page.Items, Item{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
			Size:     f.Size,
			Digest:   f.Md5Checksum,
		})
	}

	return page, nil
}

// Open 下载文件；原生文档导出为 PDF，文件名追加 ".pdf".
func (d *Drive) Open(ctx context.Context, id string) (*Stream, error) {
	meta, err := d.srv.Files.Get(id).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drive metadata %s: %w", id, err)
	}

	if strings.HasPrefix(meta.MimeType, nativePrefix) {
		resp, err := d.srv.Files.Export(id, exportMime).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("drive export %s: %w", id, err)
		}

		return &Stream{ReadCloser: resp.Body, MimeType: exportMime, Filename: meta.Name + ".pdf"}, nil
	}

	resp, err := d.srv.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download %s: %w", id, err)
	}

	return &Stream{ReadCloser: resp.Body, MimeType: meta.MimeType, Filename: meta.Name}, nil
}

// escapeQuery 转义 Drive 查询字符串中的引号与反斜杠.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
