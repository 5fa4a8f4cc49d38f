package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBanner(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Banner
		wantErr bool
	}{
		{"canonical", "1 - 10 de 333529", Banner{1, 10, 333529}, false},
		{"mid-run", "41 - 50 de 333529", Banner{41, 50, 333529}, false},
		{"embedded", "Mostrando 1 - 25 de 1200 resultados", Banner{1, 25, 1200}, false},
		{"tight spacing", "1-10 de 99", Banner{1, 10, 99}, false},
		{"garbage", "sin resultados", Banner{}, true},
		{"inverted", "10 - 1 de 99", Banner{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBanner(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBanner_PerPage(t *testing.T) {
	assert.Equal(t, 10, Banner{Start: 1, End: 10}.PerPage())
	assert.Equal(t, 25, Banner{Start: 26, End: 50}.PerPage())
	assert.Equal(t, 1, Banner{Start: 3, End: 3}.PerPage())
}
