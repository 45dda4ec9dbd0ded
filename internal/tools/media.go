package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/tjfontaine/robin-backend/internal/attachments"
	"github.com/tjfontaine/robin-backend/internal/blob"
	"github.com/tjfontaine/robin-backend/internal/domain"
	"github.com/tjfontaine/robin-backend/internal/llm"
)

const filesAPIHost = "generativelanguage.googleapis.com"

// docSlot is one resolved document in an analyze_document call. Image slots
// are first sent by URL and replaced by inline bytes if the model rejects them.
type docSlot struct {
	index    int
	resolved *attachments.Resolved
	mimeType string
}

func (tb *toolbox) analyzeDocument(ctx context.Context, s *Session, args Args) Result {
	instruction := args.StringOr("instruction", "Analyze")
	model := s.Model
	if model == "" {
		model = tb.cfg.DefaultModel
	}
	parts := []domain.Part{{Text: instruction}}
	var imageSlots []docSlot
	var sources []map[string]any

	if b64 := args.String("base64"); b64 != "" && args.StringOr("source", "base64") == "base64" {
		data, err := attachments.DecodeBase64(b64)
		if err != nil {
			return failure("base64 is not valid: %v", err)
		}
		mimeType := args.StringOr("mime_type", "application/pdf")
		parts = append(parts, domain.Part{InlineData: &domain.Blob{MIMEType: mimeType, Data: data}})
		sources = append(sources, map[string]any{"provenance": "inline", "mime_type": mimeType})
	} else {
		for _, ref := range documentRefs(args) {
			res, err := tb.Resolver.ResolveBestURL(ctx, ref, s.Attachments())
			if err != nil {
				return noSource(ref, err)
			}
			mimeType := guessMIME(res, args.String("mime_type"))
			sources = append(sources, map[string]any{"url": res.URL, "provenance": string(res.Provenance), "mime_type": mimeType})

			switch {
			case isFilesAPIURI(res.URL):
				parts = append(parts, domain.Part{FileData: &domain.FileData{FileURI: res.URL, MIMEType: mimeType}})
			case strings.HasPrefix(mimeType, "image/"):
				imageSlots = append(imageSlots, docSlot{index: len(parts), resolved: res, mimeType: mimeType})
				parts = append(parts, domain.Part{FileData: &domain.FileData{FileURI: res.URL, MIMEType: mimeType}})
			default:
				part, err := tb.uploadDocument(ctx, s, res, mimeType)
				if err != nil {
					return failureFrom("prepare "+res.Name, err)
				}
				parts = append(parts, part)
			}
		}
	}

	req := &llm.Request{Model: model, Contents: []domain.Turn{{Role: domain.RoleUser, Parts: parts}}}
	resp, err := tb.generate(ctx, req)
	if err != nil && len(imageSlots) > 0 && ctx.Err() == nil {
		tb.Logger.Info("image URL parts rejected, retrying inline", slog.String("error", err.Error()))
		inlined := slices.Clone(parts)
		if inlineErr := tb.inlineImages(ctx, s, inlined, imageSlots); inlineErr != nil {
			return failureFrom("analyze_document", errors.Join(err, inlineErr))
		}
		resp, err = tb.generate(ctx, &llm.Request{Model: model, Contents: []domain.Turn{{Role: domain.RoleUser, Parts: inlined}}})
	}
	if err != nil {
		return failureFrom("analyze_document", err)
	}
	return success(map[string]any{"text": resp.Text(), "model": model, "sources": sources})
}

func documentRefs(args Args) []attachments.Reference {
	var refs []attachments.Reference
	for _, u := range args.Strings("file_uris") {
		if u = strings.TrimSpace(u); u != "" {
			refs = append(refs, attachments.Reference{URL: u})
		}
	}
	if u, name := args.String("file_uri"), args.String("file_name"); u != "" || name != "" || len(refs) == 0 {
		refs = append(refs, attachments.Reference{URL: u, Name: name})
	}
	return refs
}

func noSource(ref attachments.Reference, err error) Result {
	label := ref.URL
	if label == "" {
		label = ref.Name
	}
	r := failure("No resolvable source for %q: attach the file or pass its exact URL", label)
	if label == "" {
		r = failure("No resolvable source: attach a file or pass its exact URL")
	}
	r["error_type"] = string(domain.TypeOf(err))
	return r
}

// uploadDocument hands non-image bytes to the provider's file store and waits
// until the file can be referenced. Upload failures fall back to inline bytes.
func (tb *toolbox) uploadDocument(ctx context.Context, s *Session, res *attachments.Resolved, mimeType string) (domain.Part, error) {
	fetched, err := tb.Fetcher.Fetch(ctx, res, s.Bearer)
	if err != nil {
		return domain.Part{}, err
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = fetched.MIMEType
	}
	f, err := tb.LLM.UploadFile(ctx, fetched.Data, mimeType, res.Name)
	if err != nil {
		tb.Logger.Warn("file upload failed, sending inline", slog.String("name", res.Name), slog.String("error", err.Error()))
		return domain.Part{InlineData: &domain.Blob{MIMEType: mimeType, Data: fetched.Data}}, nil
	}
	f, err = llm.WaitForFile(ctx, tb.LLM, f, tb.cfg.FilePollInterval, tb.cfg.FilePollTimeout)
	if err != nil {
		return domain.Part{}, err
	}
	return domain.Part{FileData: &domain.FileData{FileURI: f.URI, MIMEType: mimeType}}, nil
}

func (tb *toolbox) inlineImages(ctx context.Context, s *Session, parts []domain.Part, slots []docSlot) error {
	for _, slot := range slots {
		fetched, err := tb.Fetcher.Fetch(ctx, slot.resolved, s.Bearer)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", slot.resolved.Name, err)
		}
		parts[slot.index] = domain.Part{InlineData: &domain.Blob{MIMEType: slot.mimeType, Data: fetched.Data}}
	}
	return nil
}

func (tb *toolbox) generateImage(ctx context.Context, s *Session, args Args) Result {
	prompt := args.String("prompt")
	if prompt == "" {
		return failure("prompt is required")
	}
	fileName := args.StringOr("file_name", fmt.Sprintf("gen_%d.png", tb.now().UnixMilli()))
	return tb.renderImage(ctx, s, []domain.Part{{Text: prompt}}, args.StringOr("folder", tb.cfg.ImageFolder), fileName)
}

func (tb *toolbox) enhanceImage(ctx context.Context, s *Session, args Args) Result {
	instruction := args.StringOr("instruction", "Enhance")
	parts := []domain.Part{{Text: instruction}}

	if b64 := args.String("base64"); b64 != "" && args.StringOr("source", "base64") == "base64" {
		data, err := attachments.DecodeBase64(b64)
		if err != nil {
			return failure("base64 is not valid: %v", err)
		}
		parts = append(parts, domain.Part{InlineData: &domain.Blob{MIMEType: args.StringOr("mime_type", "image/png"), Data: data}})
	} else {
		ref := attachments.Reference{URL: args.String("file_uri"), Name: args.String("source_name")}
		res, err := tb.Resolver.ResolveBestURL(ctx, ref, s.Attachments())
		if err != nil {
			return noSource(ref, err)
		}
		fetched, err := tb.Fetcher.Fetch(ctx, res, s.Bearer)
		if err != nil {
			return failureFrom("fetch source image", err)
		}
		parts = append(parts, domain.Part{InlineData: &domain.Blob{MIMEType: guessMIME(res, fetched.MIMEType), Data: fetched.Data}})
	}

	fileName := args.StringOr("file_name", fmt.Sprintf("enh_%d.png", tb.now().UnixMilli()))
	return tb.renderImage(ctx, s, parts, args.StringOr("folder", tb.cfg.ImageFolder), fileName)
}

// renderImage asks the image model for one picture, stores it, and makes it
// resolvable by later tool calls in the request.
func (tb *toolbox) renderImage(ctx context.Context, s *Session, parts []domain.Part, folder, fileName string) Result {
	resp, err := tb.generate(ctx, &llm.Request{
		Model:      tb.cfg.ImageModel,
		Contents:   []domain.Turn{{Role: domain.RoleUser, Parts: parts}},
		Modalities: []string{llm.ModalityText, llm.ModalityImage},
	})
	if err != nil {
		return failureFrom("image generation", err)
	}
	img := resp.FirstImage()
	if img == nil {
		return failure("No image returned")
	}
	caption := resp.Text()

	fileName = attachments.SanitizeName(fileName)
	if path.Ext(fileName) == "" {
		fileName += extensionFor(img.MIMEType)
	}
	obj := blob.Object{Bucket: tb.cfg.GeneratedBucket, Key: strings.Trim(folder, "/") + "/" + fileName}
	if err := tb.Blob.Put(ctx, obj, img.Data, img.MIMEType); err != nil {
		return failureFrom("store image", err)
	}
	publicURL := tb.Blob.PublicURL(obj)
	signedURL, err := tb.Blob.SignedURL(ctx, obj, tb.cfg.SignedURLTTL)
	if err != nil {
		tb.Logger.Warn("signing generated image failed", slog.String("path", obj.Key), slog.String("error", err.Error()))
	}

	s.AddAttachment(attachments.Attachment{
		Bucket:    obj.Bucket,
		Path:      obj.Key,
		URL:       publicURL,
		PublicURL: publicURL,
		SignedURL: signedURL,
		MIMEType:  img.MIMEType,
		FileName:  fileName,
	})
	return success(map[string]any{
		"path":      obj.Key,
		"url":       publicURL,
		"publicUrl": publicURL,
		"signedUrl": signedURL,
		"caption":   caption,
		"mime_type": img.MIMEType,
	})
}

func guessMIME(res *attachments.Resolved, hint string) string {
	if res.MIMEType != "" && res.MIMEType != "application/octet-stream" {
		return res.MIMEType
	}
	if hint != "" {
		return hint
	}
	if u, err := url.Parse(res.URL); err == nil {
		if t := mime.TypeByExtension(path.Ext(u.Path)); t != "" {
			mt, _, _ := strings.Cut(t, ";")
			return mt
		}
	}
	return "application/octet-stream"
}

func isFilesAPIURI(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.EqualFold(u.Host, filesAPIHost)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
