package metadata

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// TrackTags is the embedded tag data read from a downloaded audio file.
// Downloaders write these themselves; the dashboard only ever reads them.
type TrackTags struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
}

// ReadTags reads tag data from an MP3 or FLAC file
func ReadTags(filePath string) (*TrackTags, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return readMP3Tags(filePath)
	case ".flac":
		return readFLACTags(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// readMP3Tags reads ID3v2 frames from an MP3 file
func readMP3Tags(filePath string) (*TrackTags, error) {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tags := &TrackTags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Genre:  tag.Genre(),
	}

	if yearStr := tag.Year(); yearStr != "" {
		if year, err := strconv.Atoi(yearStr); err == nil {
			tags.Year = year
		}
	}

	if frames := tag.GetFrames(tag.CommonID("Band/Orchestra/Accompaniment")); len(frames) > 0 {
		if tf, ok := frames[0].(id3v2.TextFrame); ok {
			tags.AlbumArtist = tf.Text
		}
	}

	// track and disc frames may carry a "n/total" suffix
	if frames := tag.GetFrames(tag.CommonID("Track number/Position in set")); len(frames) > 0 {
		if tf, ok := frames[0].(id3v2.TextFrame); ok {
			if trackNum, err := strconv.Atoi(strings.Split(tf.Text, "/")[0]); err == nil {
				tags.TrackNumber = trackNum
			}
		}
	}
	if frames := tag.GetFrames(tag.CommonID("Part of a set")); len(frames) > 0 {
		if tf, ok := frames[0].(id3v2.TextFrame); ok {
			if discNum, err := strconv.Atoi(strings.Split(tf.Text, "/")[0]); err == nil {
				tags.DiscNumber = discNum
			}
		}
	}

	return tags, nil
}

// readFLACTags reads Vorbis comments from a FLAC file
func readFLACTags(filePath string) (*TrackTags, error) {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	tags := &TrackTags{}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}

		if titles, err := cmt.Get("TITLE"); err == nil && len(titles) > 0 {
			tags.Title = titles[0]
		}
		if artists, err := cmt.Get("ARTIST"); err == nil && len(artists) > 0 {
			tags.Artist = artists[0]
		}
		if albums, err := cmt.Get("ALBUM"); err == nil && len(albums) > 0 {
			tags.Album = albums[0]
		}
		if albumArtists, err := cmt.Get("ALBUMARTIST"); err == nil && len(albumArtists) > 0 {
			tags.AlbumArtist = albumArtists[0]
		}
		if genres, err := cmt.Get("GENRE"); err == nil && len(genres) > 0 {
			tags.Genre = genres[0]
		}
		if dates, err := cmt.Get("DATE"); err == nil && len(dates) > 0 {
			if year, err := strconv.Atoi(dates[0]); err == nil {
				tags.Year = year
			}
		}
		if trackNums, err := cmt.Get("TRACKNUMBER"); err == nil && len(trackNums) > 0 {
			if trackNum, err := strconv.Atoi(strings.Split(trackNums[0], "/")[0]); err == nil {
				tags.TrackNumber = trackNum
			}
		}
		if discNums, err := cmt.Get("DISCNUMBER"); err == nil && len(discNums) > 0 {
			if discNum, err := strconv.Atoi(strings.Split(discNums[0], "/")[0]); err == nil {
				tags.DiscNumber = discNum
			}
		}

		break
	}

	return tags, nil
}
