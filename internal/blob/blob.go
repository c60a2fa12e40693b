// Package blob publishes exports as CSV blobs in Azure Blob Storage.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azb "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"praondefoi/internal/export"
	"praondefoi/internal/log"
)

// Well-known Azurite development account.
const (
	devAccountName = "devstoreaccount1"
	devAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

type Config struct {
	ServiceURL  string
	Container   string
	AccountName string
	AccountKey  string
}

// uploader is the subset of *azblob.Client the sink uses.
type uploader interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

type Sink struct {
	client     uploader
	serviceURL string
	container  string
	logger     *log.Logger
}

// Ensure interface conformance
var _ export.Sink = (*Sink)(nil)

// NewSink authenticates with the account key when one is configured, with the
// Azurite development key for plain http endpoints, and with the default Azure
// credential chain otherwise.
func NewSink(cfg Config, logger *log.Logger) (*Sink, error) {
	serviceURL := strings.TrimSpace(cfg.ServiceURL)
	if serviceURL == "" {
		return nil, fmt.Errorf("BLOB_SERVICE_URL is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("blob container is required")
	}

	name, key := cfg.AccountName, cfg.AccountKey
	if (name == "" || key == "") && strings.HasPrefix(serviceURL, "http://") {
		// Dev/Azurite
		name, key = devAccountName, devAccountKey
	}

	var client *azblob.Client
	if name != "" && key != "" {
		cred, err := azblob.NewSharedKeyCredential(name, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
	}

	return newSink(client, serviceURL, cfg.Container, logger), nil
}

func newSink(client uploader, serviceURL, container string, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sink{
		client:     client,
		serviceURL: strings.TrimRight(serviceURL, "/"),
		container:  container,
		logger:     logger.WithComponent(log.ComponentBlob),
	}
}

func (s *Sink) Name() string { return "blob" }

// Write uploads the export as CSV and returns the blob URL.
func (s *Sink) Write(ctx context.Context, exp export.Export) (string, error) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, exp); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}

	if _, err := s.client.CreateContainer(ctx, s.container, nil); err != nil &&
		!bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return "", fmt.Errorf("create container %s: %w", s.container, err)
	}

	name := export.FileName(exp)
	_, err := s.client.UploadBuffer(ctx, s.container, name, buf.Bytes(), &azblob.UploadBufferOptions{
		HTTPHeaders: &azb.HTTPHeaders{BlobContentType: to.Ptr("text/csv; charset=utf-8")},
		Metadata: map[string]*string{
			"account": to.Ptr(fmt.Sprint(exp.AccountID)),
			"records": to.Ptr(fmt.Sprint(exp.Totals.Count)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	ref := fmt.Sprintf("%s/%s/%s", s.serviceURL, s.container, name)
	s.logger.InfoContext(ctx, "Export uploaded",
		log.FieldAccountID, exp.AccountID,
		log.FieldRecords, exp.Totals.Count,
		log.FieldSinkRef, ref)
	return ref, nil
}
