package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes bounds request bodies. Avatars are URLs, not uploads.
const maxBodyBytes = 64 << 10

// input is every field any operation reads. Profile fields are pointers so
// "absent" and "empty" stay distinguishable.
type input struct {
	Action      string  `json:"action"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	MemberID    string  `json:"member_id"`
	Avatar      *string `json:"avatar"`
	FacebookURL *string `json:"facebook_url"`
	YouTubeURL  *string `json:"youtube_url"`
	TikTokURL   *string `json:"tiktok_url"`
	Limit       int     `json:"limit"`
}

var errBadRequest = errors.New("malformed request")

// decodeInput reads the request in any of the shapes the old browser client
// sent: a JSON body, an urlencoded or multipart form, or plain query values.
func decodeInput(w http.ResponseWriter, r *http.Request) (*input, error) {
	in := &input{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(in); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		// The legacy action may still ride in the query string.
		if in.Action == "" {
			in.Action = r.URL.Query().Get("action")
		}
		return in, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	form := r.Form
	in.Action = form.Get("action")
	in.Username = form.Get("username")
	in.Email = form.Get("email")
	in.Password = form.Get("password")
	in.MemberID = form.Get("member_id")
	in.Avatar = formValue(form, "avatar")
	in.FacebookURL = formValue(form, "facebook_url")
	in.YouTubeURL = formValue(form, "youtube_url")
	in.TikTokURL = formValue(form, "tiktok_url")

	if raw := strings.TrimSpace(form.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: limit %q is not a number", errBadRequest, raw)
		}
		in.Limit = n
	}
	return in, nil
}

func formValue(form map[string][]string, key string) *string {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}
