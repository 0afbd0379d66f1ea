package dedup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// maxNameAttempts 同一文件名的计数上限.
const maxNameAttempts = 1000

// namer 分配隔离文件名，从不复用已存在或本次已分配的名字.
type namer struct {
	dir  string
	used map[string]struct{}
}

func newNamer(dir string) *namer {
	return &namer{dir: dir, used: make(map[string]struct{})}
}

// next 返回 <prefix>_<name>，冲突时依次尝试 <prefix>_2_<name>、<prefix>_3_<name>.
func (n *namer) next(prefix, name string) (string, error) {
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := prefix + "_" + name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d_%s", prefix, i, name)
		}

		if _, taken := n.used[candidate]; taken {
			continue
		}

		if _, err := os.Lstat(filepath.Join(n.dir, candidate)); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		n.used[candidate] = struct{}{}

		return candidate, nil
	}

	return "", fmt.Errorf("no free quarantine name for %s", name)
}

// move 将 src 移动到 dst，dst 已存在时失败. 跨设备时退化为复制后删除.
func move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s already exists", filepath.Base(dst))
	}

	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	return copyRemove(src, dst)
}

func copyRemove(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}

	if err = out.Sync(); err != nil {
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return os.Remove(src)
}
