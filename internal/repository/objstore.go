package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"blueprint-forge/internal/config"
	"blueprint-forge/internal/model"
)

// Mirror 将验证通过的蓝图镜像到 MinIO 对象存储
//
// 可选组件：仅在配置了对象存储端点时创建。
type Mirror struct {
	mc     *minio.Client
	bucket string
}

// NewMirror 创建对象存储镜像
func NewMirror(cfg config.MinIOConfig) (*Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "blueprints"
	}

	return &Mirror{mc: mc, bucket: bucket}, nil
}

// EnsureBucket 确保 bucket 存在
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Publish 上传验证通过的脚本产物
//
// 对象键为 <描述符键>/run.sh，重复发布整体覆盖。
func (m *Mirror) Publish(ctx context.Context, artifact model.ScriptArtifact) error {
	key := artifact.Descriptor.Key() + "/" + scriptName
	reader := strings.NewReader(artifact.Content)

	_, err := m.mc.PutObject(ctx, m.bucket, key, reader, int64(len(artifact.Content)), minio.PutObjectOptions{
		ContentType: "text/x-shellscript",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (m *Mirror) Exists(ctx context.Context, d model.TechnologyDescriptor) (bool, error) {
	key := d.Key() + "/" + scriptName
	_, err := m.mc.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
