package binder

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

var fileHeaderType = reflect.TypeOf(map[string]*multipart.FileHeader{})

// Binder is a custom struct that implements the Echo Binder interface. It binds
// to a struct, uses mold to clean up the params, and validator to validate
// them.
type Binder struct {
	storagePrefix string
	queryDecoder  *schema.Decoder
	formDecoder   *schema.Decoder
	conform       *mold.Transformer
	validate      *validator.Validate
}

// New initializes a new Binder. storagePrefix is the prefix that the
// storage_location validator requires.
func New(storagePrefix string) (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	formDecoder := schema.NewDecoder()
	formDecoder.SetAliasTag("form")
	conform := modifiers.New()
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "" {
			tag = fld.Tag.Get("form")
		}
		if tag == "" {
			tag = fld.Tag.Get("query")
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	locationRE := models.StorageLocationRegexp(storagePrefix)
	for tag, fn := range map[string]validator.Func{
		"date":             dateValidator,
		"isbn":             isbnValidator,
		"storage_location": storageLocationValidator(locationRE),
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return &Binder{storagePrefix, queryDecoder, formDecoder, conform, validate}, nil
}

// Bind binds, modifies, and validates payloads against the given struct.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	disallowEmptyBody := true
	if disallow, ok := c.Get("disallow_empty_body").(bool); ok {
		disallowEmptyBody = disallow
	}

	if req.ContentLength > 0 {
		ctype := req.Header.Get(echo.HeaderContentType)
		switch {
		case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
			if err := b.decodeJSON(i, c); err != nil {
				return err
			}
		case strings.HasPrefix(ctype, echo.MIMEApplicationForm), strings.HasPrefix(ctype, echo.MIMEMultipartForm):
			if err := b.decodeForm(i, c, strings.HasPrefix(ctype, echo.MIMEMultipartForm)); err != nil {
				return err
			}
		default:
			return errcodes.UnsupportedMediaType()
		}
	} else {
		if req.Method == http.MethodGet || req.Method == http.MethodDelete {
			if err := b.decodeQuery(i, c.QueryParams(), b.queryDecoder); err != nil {
				return errors.WithStack(err)
			}
		} else if disallowEmptyBody {
			return errcodes.EmptyRequestBody()
		}
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) || len(errs) == 0 {
			return errors.WithStack(err)
		}
		return errcodes.ValidationError(formatValidationError(errs[0], b.storagePrefix))
	}
	return nil
}

func (b *Binder) decodeJSON(i interface{}, c echo.Context) error {
	req := c.Request()
	defer req.Body.Close()

	dec := json.NewDecoder(req.Body)
	disallowUnknownFields := true
	if disallow, ok := c.Get("disallow_unknown_fields").(bool); ok {
		disallowUnknownFields = disallow
	}
	if disallowUnknownFields {
		dec.DisallowUnknownFields()
	}

	err := dec.Decode(i)
	if err == nil {
		return nil
	}
	if matches := unknownFieldsRE.FindStringSubmatch(err.Error()); len(matches) > 1 {
		return errcodes.UnknownParameter(matches[1])
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
	}

	logger.FromEchoContext(c).Err(err).Error("unknown json decode error")
	return errcodes.MalformedPayload()
}

// decodeForm decodes url-encoded and multipart bodies. Uploaded files are
// placed in a FormFiles map[string]*multipart.FileHeader field when the
// target has one; only the first file per key is kept.
func (b *Binder) decodeForm(i interface{}, c echo.Context, multipartBody bool) error {
	params, err := c.FormParams()
	if err != nil {
		return errcodes.MalformedPayload()
	}
	if err := b.decodeQuery(i, params, b.formDecoder); err != nil {
		return errors.WithStack(err)
	}
	if !multipartBody {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errors.WithStack(err)
	}
	field := reflect.ValueOf(i).Elem().FieldByName("FormFiles")
	if !field.IsValid() || !field.CanSet() || field.Type() != fileHeaderType {
		return nil
	}
	files := make(map[string]*multipart.FileHeader, len(form.File))
	for key, headers := range form.File {
		if len(headers) > 0 {
			files[key] = headers[0]
		}
	}
	field.Set(reflect.ValueOf(files))
	return nil
}

func (b *Binder) decodeQuery(i interface{}, params url.Values, decoder *schema.Decoder) error {
	err := decoder.Decode(i, params)
	if err == nil {
		return nil
	}

	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return errors.WithStack(err)
	}
	for _, e := range multi {
		var conversion schema.ConversionError
		if errors.As(e, &conversion) {
			return errcodes.ValidationTypeError(formatSchemaConversionError(conversion))
		}
		var unknown schema.UnknownKeyError
		if errors.As(e, &unknown) {
			return errcodes.UnknownParameter(unknown.Key)
		}
		return errors.WithStack(e)
	}
	return errors.WithStack(err)
}
