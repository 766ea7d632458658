package studio

import "strings"

// GenerationStatusNotImplemented marks generation requests that have no
// backing model yet.
const GenerationStatusNotImplemented = "not_implemented"

// SocialPlatforms are the platforms generate_social_posts accepts.
var SocialPlatforms = []string{"twitter", "linkedin", "instagram", "youtube", "tiktok"}

// GenerationContext is the episode data a generator would be given.
type GenerationContext struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Platforms   []string `json:"platforms,omitempty"`
}

// GenerationResult is returned by the generation tools.
type GenerationResult struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Context GenerationContext `json:"context"`
}

// GenerateDescription checks that the episode exists and reports that
// description generation is not available.
func (s *Studio) GenerateDescription(series, episode string) (GenerationResult, error) {
	ctx, err := s.generationContext(series, episode)
	if err != nil {
		return GenerationResult{}, err
	}
	return GenerationResult{
		Status:  GenerationStatusNotImplemented,
		Message: "Description generation is not implemented yet. Use the context below to draft one manually.",
		Context: ctx,
	}, nil
}

// GenerateSocialPosts checks that the episode exists and reports that social
// post generation is not available. Unknown platforms are dropped; an empty
// list means every platform.
func (s *Studio) GenerateSocialPosts(series, episode string, platforms []string) (GenerationResult, error) {
	ctx, err := s.generationContext(series, episode)
	if err != nil {
		return GenerationResult{}, err
	}
	ctx.Platforms = filterPlatforms(platforms)
	return GenerationResult{
		Status:  GenerationStatusNotImplemented,
		Message: "Social post generation is not implemented yet. Use the context below to draft posts manually.",
		Context: ctx,
	}, nil
}

func (s *Studio) generationContext(series, episode string) (GenerationContext, error) {
	ep, err := s.episodes.Get(series, episode)
	if err != nil {
		return GenerationContext{}, err
	}
	ctx := GenerationContext{
		Title:       stringField(ep.Metadata, "title"),
		Description: stringField(ep.Metadata, "description"),
		Tags:        []string{},
	}
	if tags, ok := ep.Metadata["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				ctx.Tags = append(ctx.Tags, s)
			}
		}
	}
	return ctx, nil
}

func filterPlatforms(requested []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), SocialPlatforms...)
	}
	out := []string{}
	for _, p := range requested {
		p = strings.ToLower(strings.TrimSpace(p))
		for _, known := range SocialPlatforms {
			if p == known {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
