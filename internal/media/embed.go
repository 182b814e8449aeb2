package media

import (
	"strings"
)

type EmbedType int

const (
	EmbedTypeNone EmbedType = iota
	EmbedTypeYouTube
	EmbedTypeAudio
	EmbedTypeIframe
)

type EmbedInfo struct {
	Type EmbedType
	URL  string
}

func (t EmbedType) String() string {
	switch t {
	case EmbedTypeYouTube:
		return "youtube"
	case EmbedTypeAudio:
		return "audio"
	case EmbedTypeIframe:
		return "iframe"
	}
	return "none"
}

// GetEmbedInfo classifies a track URL into something the music page can
// render: a YouTube embed, a direct audio source, or a generic iframe.
func GetEmbedInfo(link string) EmbedInfo {
	if link == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}

	if strings.Contains(link, "youtube.com") || strings.Contains(link, "youtu.be") {
		videoID := ""
		if strings.Contains(link, "youtube.com/watch?v=") {
			parts := strings.Split(link, "v=")
			if len(parts) > 1 {
				videoID = parts[1]
				// Strip trailing query parameters, probably won't catch everything
				if idx := strings.Index(videoID, "&"); idx != -1 {
					videoID = videoID[:idx]
				}
			}
		} else if strings.Contains(link, "youtu.be/") {
			parts := strings.Split(link, "youtu.be/")
			if len(parts) > 1 {
				videoID = parts[1]
				if idx := strings.Index(videoID, "?"); idx != -1 {
					videoID = videoID[:idx]
				}
			}
		} else if strings.Contains(link, "youtube.com/embed/") {
			return EmbedInfo{Type: EmbedTypeYouTube, URL: link}
		}

		if videoID != "" {
			return EmbedInfo{Type: EmbedTypeYouTube, URL: "https://www.youtube.com/embed/" + videoID}
		}
	}

	lower := strings.ToLower(link)
	for _, ext := range []string{".mp3", ".ogg", ".wav", ".flac", ".m4a"} {
		if strings.HasSuffix(lower, ext) {
			return EmbedInfo{Type: EmbedTypeAudio, URL: link}
		}
	}

	// Default to a generic iframe and hope for the best
	return EmbedInfo{Type: EmbedTypeIframe, URL: link}
}
