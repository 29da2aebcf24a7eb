package magazines

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/errcodes"
)

const maxCoverBytes = 5 << 20

var coverTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// CoverUpload is an image sent along with a magazine. Content is rewound
// after sniffing, so it must be seekable.
type CoverUpload struct {
	Size    int64
	Content io.ReadSeeker
}

// coverExtension sniffs the upload and returns the extension to store it
// under.
func coverExtension(cover *CoverUpload) (string, error) {
	if cover.Size > maxCoverBytes {
		return "", errcodes.LimitExceeded(
			fmt.Sprintf("Cover exceeds the maximum size of %d MB", maxCoverBytes>>20),
			errcodes.Details{"file_size": cover.Size, "max_upload_size": maxCoverBytes},
		)
	}

	mtype, err := mimetype.DetectReader(cover.Content)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := cover.Content.Seek(0, io.SeekStart); err != nil {
		return "", errors.WithStack(err)
	}

	for _, t := range coverTypes {
		if mtype.Is(t) {
			return strings.TrimPrefix(mtype.Extension(), "."), nil
		}
	}
	return "", errcodes.ValidationError("Cover must be a JPEG, PNG, WebP or GIF image, not " + mtype.String())
}
