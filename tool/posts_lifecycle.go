package tool

import (
	"context"

	"github.com/petal-labs/ghostmcp/ghost"
)

// Publish and unpublish read the post first and write with the fetched
// version token. A stale token comes back from the backend as Conflict.

type publishPostRequest struct {
	id           *string
	publishedAt  *string
	sendEmail    *bool
	emailSegment *string
	newsletter   *string
}

func (r publishPostRequest) validate() error {
	if r.id == nil {
		return missingField("id")
	}
	return nil
}

func decodePublishPost(r *ArgReader) publishPostRequest {
	return publishPostRequest{
		id:           r.Identifier("id"),
		publishedAt:  r.Date("published_at"),
		sendEmail:    r.Bool("send_email"),
		emailSegment: r.NonEmptyString("email_segment"),
		newsletter:   r.NonEmptyString("newsletter"),
	}
}

func (p *Posts) publish(ctx context.Context, req publishPostRequest) (string, error) {
	current, err := p.gateway.ReadPost(ctx, ghost.ByID(*req.id), ghost.ReadParams{})
	if err != nil {
		return "", err
	}
	if current.Status == ghost.StatusPublished {
		return "", invalidf("status", "Post is already published")
	}

	publishedAt := req.publishedAt
	if publishedAt == nil {
		now := p.now().UTC().Format(DateLayout)
		publishedAt = &now
	}
	status := ghost.StatusPublished
	in := ghost.PostInput{
		Status:                 &status,
		PublishedAt:            publishedAt,
		UpdatedAt:              versionToken(nil, current),
		SendEmailWhenPublished: req.sendEmail,
		EmailSegment:           req.emailSegment,
	}

	post, err := p.gateway.EditPost(ctx, *req.id, in, ghost.EditOptions{Newsletter: deref(req.newsletter)})
	if err != nil {
		return "", err
	}
	return formatResponse("Post published successfully", post)
}

type unpublishPostRequest struct {
	id *string
}

func (r unpublishPostRequest) validate() error {
	if r.id == nil {
		return missingField("id")
	}
	return nil
}

func decodeUnpublishPost(r *ArgReader) unpublishPostRequest {
	return unpublishPostRequest{id: r.Identifier("id")}
}

func (p *Posts) unpublish(ctx context.Context, req unpublishPostRequest) (string, error) {
	current, err := p.gateway.ReadPost(ctx, ghost.ByID(*req.id), ghost.ReadParams{})
	if err != nil {
		return "", err
	}
	if current.Status != ghost.StatusPublished {
		return "", invalidf("status", "Post is not published")
	}

	status := ghost.StatusDraft
	post, err := p.gateway.EditPost(ctx, *req.id, ghost.PostInput{
		Status:    &status,
		UpdatedAt: versionToken(nil, current),
	}, ghost.EditOptions{})
	if err != nil {
		return "", err
	}
	return formatResponse("Post unpublished successfully", post)
}
