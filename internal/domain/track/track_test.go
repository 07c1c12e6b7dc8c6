package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackArtistLine(t *testing.T) {
	assert.Equal(t, "Daft Punk, Pharrell Williams", (&Track{Artists: []string{"Daft Punk", "Pharrell Williams"}}).ArtistLine())
	assert.Equal(t, "", (&Track{}).ArtistLine())
}
