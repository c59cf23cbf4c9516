// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// ImageConfig holds the image generation parameters.
type ImageConfig struct {
	Model   string
	Size    string
	Quality string
}

func (c ImageConfig) withDefaults() ImageConfig {
	if c.Model == "" {
		c.Model = string(openai.ImageModelDallE3)
	}
	if c.Size == "" {
		c.Size = string(openai.ImageGenerateParamsSize1024x1024)
	}
	if c.Quality == "" {
		c.Quality = string(openai.ImageGenerateParamsQualityStandard)
	}
	return c
}

// GenerateArt generates one image for prompt and returns its URL.
func (p *Provider) GenerateArt(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  prompt,
		Model:   openai.ImageModel(p.image.Model),
		Size:    openai.ImageGenerateParamsSize(p.image.Size),
		Quality: openai.ImageGenerateParamsQuality(p.image.Quality),
		N:       openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("openai image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("openai image generation returned no image")
	}
	return resp.Data[0].URL, nil
}
