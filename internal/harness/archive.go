package harness

import (
	"archive/tar"
	"bytes"
	"fmt"
	"time"
)

// scriptFileName 脚本在容器内的文件名
const scriptFileName = "run.sh"

// scriptArchive 将脚本内容打成单文件 tar 归档
//
// 通过归档传输而非宿主机挂载，避免宿主路径耦合。
func scriptArchive(script string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)

	hdr := &tar.Header{
		Name:    scriptFileName,
		Mode:    0755,
		Size:    int64(len(script)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tw.Write([]byte(script)); err != nil {
		return nil, fmt.Errorf("failed to write tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tar archive: %w", err)
	}

	return buf, nil
}
