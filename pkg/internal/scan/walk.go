package scan

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// systemFiles 操作系统生成的文件，永远不纳入目录.
var systemFiles = map[string]struct{}{
	"thumbs.db":   {},
	"desktop.ini": {},
	"icon\r":      {},
}

// Entry 遍历得到的候选文件.
type Entry struct {
	Path string // 绝对或相对于工作目录的路径
	Rel  string // 相对于根目录，分隔符为 "/"
	Name string
	Ext  string // 小写且不带点
	Size int64
}

// WalkOptions 遍历选项.
type WalkOptions struct {
	// Extensions 允许的扩展名（小写，带点），nil 表示全部.
	Extensions map[string]struct{}
	// Exclude 跳过的路径（目录或文件）.
	Exclude []string
	// OnError 处理无法读取的条目，返回后遍历继续.
	OnError func(path string, err error)
}

// IsJunk 报告文件名是否为隐藏文件、Office 锁文件或系统文件.
func IsJunk(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return true
	}

	_, ok := systemFiles[strings.ToLower(name)]

	return ok
}

// Walk 以字典序遍历 root，跳过隐藏目录与垃圾文件.
// 每个条目之前检查 ctx，取消时返回已收集的条目与 ctx.Err().
func Walk(ctx context.Context, root string, opts WalkOptions) ([]Entry, error) {
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		if p == "" {
			continue
		}

		if abs, err := filepath.Abs(p); err == nil {
			exclude[abs] = struct{}{}
		}
	}

	var out []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if err != nil {
			if path == root {
				return err
			}

			if opts.OnError != nil {
				opts.OnError(path, err)
			}

			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if len(exclude) > 0 {
			if abs, aerr := filepath.Abs(path); aerr == nil {
				if _, skip := exclude[abs]; skip {
					if d.IsDir() {
						return fs.SkipDir
					}

					return nil
				}
			}
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() || IsJunk(d.Name()) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if opts.Extensions != nil {
			if _, ok := opts.Extensions[ext]; !ok {
				return nil
			}
		}

		info, ierr := d.Info()
		if ierr != nil {
			if opts.OnError != nil {
				opts.OnError(path, ierr)
			}

			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}

		out = append(out, Entry{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Name: d.Name(),
			Ext:  strings.TrimPrefix(ext, "."),
			Size: info.Size(),
		})

		return nil
	})

	return out, err
}
