package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemandBridge/environment-transfer-tool/pkg/document"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// fakeEnv is an in-memory environment. Every Connect returns a new session
// whose identifier reservations are private to it, like API keys are.
type fakeEnv struct {
	name  string
	items map[resource.Unit]*fakeItem
	calls []string

	connects   int
	previewErr error

	// uploadHook may alter the bytes stored by the n-th upload (1-based).
	uploadHook func(n int, data []byte) []byte
	uploads    int

	// readHook may alter the XML returned by the n-th document read back.
	readHook func(n int, xml string) string
	reads    int

	addErr map[resource.Kind]error
}

type fakeItem struct {
	def  resource.Definition
	xml  string
	data []byte
}

func newFakeEnv(name string) *fakeEnv {
	return &fakeEnv{
		name:   name,
		items:  make(map[resource.Unit]*fakeItem),
		addErr: make(map[resource.Kind]error),
	}
}

func (e *fakeEnv) Name() string { return e.name }

func (e *fakeEnv) Connect(ctx context.Context) (API, error) {
	e.connects++
	return &fakeSession{env: e, reserved: make(map[resource.Kind]string)}, nil
}

func (e *fakeEnv) putFile(kind resource.Kind, id, path string, data []byte) {
	name := path[strings.LastIndex(path, resource.PathSeparator)+1:]
	e.items[resource.Unit{Kind: kind, ID: id}] = &fakeItem{
		def: resource.Definition{
			Name:         name,
			ID:           id,
			RelativePath: &path,
			FileSize:     strconv.Itoa(len(data)),
		},
		data: data,
	}
}

func (e *fakeEnv) putXML(kind resource.Kind, id, path, xml string) {
	name := path[strings.LastIndex(path, resource.PathSeparator)+1:]
	e.items[resource.Unit{Kind: kind, ID: id}] = &fakeItem{
		def: resource.Definition{Name: name, ID: id, RelativePath: &path},
		xml: xml,
	}
}

func (e *fakeEnv) record(format string, args ...any) {
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
}

// callsWithPrefix returns the recorded calls starting with one of prefixes.
func (e *fakeEnv) callsWithPrefix(prefixes ...string) []string {
	var out []string
	for _, c := range e.calls {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

type fakeSession struct {
	env      *fakeEnv
	reserved map[resource.Kind]string
}

func (s *fakeSession) lookup(kind resource.Kind, id string) (*fakeItem, error) {
	item, ok := s.env.items[resource.Unit{Kind: kind, ID: id}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, id, ErrNotFound)
	}
	return item, nil
}

func (s *fakeSession) GetDefinition(ctx context.Context, kind resource.Kind, id string) (resource.Definition, error) {
	item, err := s.lookup(kind, id)
	if err != nil {
		return resource.Definition{}, err
	}
	return item.def, nil
}

func (s *fakeSession) ReserveID(ctx context.Context, kind resource.Kind, id string) (bool, error) {
	s.env.record("reserve %s/%s", kind, id)
	if _, ok := s.env.items[resource.Unit{Kind: kind, ID: id}]; ok {
		return false, nil
	}
	s.reserved[kind] = id
	return true, nil
}

func (s *fakeSession) Download(ctx context.Context, kind resource.Kind, id string) ([]byte, error) {
	item, err := s.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	return item.data, nil
}

func (s *fakeSession) GetXML(ctx context.Context, kind resource.Kind, id string) (string, error) {
	item, err := s.lookup(kind, id)
	if err != nil {
		return "", err
	}
	if kind == resource.Documents && s.env.readHook != nil {
		s.env.reads++
		return s.env.readHook(s.env.reads, item.xml), nil
	}
	return item.xml, nil
}

func (s *fakeSession) store(data []byte) []byte {
	s.env.uploads++
	if s.env.uploadHook != nil {
		return s.env.uploadHook(s.env.uploads, data)
	}
	return data
}

func (s *fakeSession) AddItem(ctx context.Context, kind resource.Kind, name, folder string, payload Payload) error {
	id, ok := s.reserved[kind]
	if !ok {
		return errors.New("no identifier reserved in this session")
	}
	s.env.record("add %s/%s", kind, id)
	if err := s.env.addErr[kind]; err != nil {
		return err
	}

	path := folder + name
	item := &fakeItem{
		def: resource.Definition{Name: name, ID: id, RelativePath: &path},
		xml: payload.XML,
	}
	if payload.FileData != nil {
		item.data = s.store(payload.FileData)
		item.def.FileSize = strconv.Itoa(len(item.data))
	}
	s.env.items[resource.Unit{Kind: kind, ID: id}] = item
	delete(s.reserved, kind)
	return nil
}

func (s *fakeSession) ReplaceFile(ctx context.Context, kind resource.Kind, id string, data []byte) error {
	s.env.record("replace %s/%s", kind, id)
	item, err := s.lookup(kind, id)
	if err != nil {
		return err
	}
	item.data = s.store(data)
	item.def.FileSize = strconv.Itoa(len(item.data))
	return nil
}

func (s *fakeSession) SaveXML(ctx context.Context, kind resource.Kind, id, xml string) error {
	s.env.record("save %s/%s", kind, id)
	item, err := s.lookup(kind, id)
	if err != nil {
		return err
	}
	item.xml = xml
	return nil
}

func (s *fakeSession) ProcessServerSide(ctx context.Context, id string) error {
	s.env.record("process %s", id)
	return nil
}

func (s *fakeSession) DeleteItem(ctx context.Context, kind resource.Kind, id string) error {
	s.env.record("delete %s/%s", kind, id)
	delete(s.env.items, resource.Unit{Kind: kind, ID: id})
	return nil
}

func (s *fakeSession) SetPreviewGeneration(ctx context.Context, enabled bool) error {
	s.env.record("preview %t", enabled)
	return s.env.previewErr
}

type fakeRecorder struct {
	begun    int
	outcomes []Outcome
	finished *Report
}

func (r *fakeRecorder) Begin(ctx context.Context, run RunInfo) error {
	r.begun++
	return nil
}

func (r *fakeRecorder) Record(ctx context.Context, run RunInfo, outcome Outcome) error {
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *fakeRecorder) Finish(ctx context.Context, run RunInfo, report *Report) error {
	r.finished = report
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BinaryRetry = ConstantRetry(0)
	cfg.VerifyDelay = 0
	cfg.ItemInterval = 0
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeEnv, *fakeEnv) {
	t.Helper()
	src := newFakeEnv("source")
	dst := newFakeEnv("dest")
	e, err := New(cfg, src, dst)
	require.NoError(t, err)
	return e, src, dst
}

func flyerXML(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../document/testdata/flyer.xml")
	require.NoError(t, err)
	return string(b)
}

const smallDocument = `<document name="Card" id="doc-1">
  <fonts>
    <item id="font-1" name="Gotham Bold" family="Gotham" style="Bold" />
  </fonts>
  <pages>
    <item id="p1">
      <frames>
        <item id="fr1" type="image" hasContent="true" dynamicAssetProviderID="" externalID="asset-1" />
        <item id="fr2" type="barcode" barcodeTypeID="bc-1" />
      </frames>
    </item>
  </pages>
</document>`

func putSmallDocument(src *fakeEnv) {
	src.putXML(resource.Documents, "doc-1", `Cards\Card`, smallDocument)
	src.putFile(resource.Fonts, "font-1", `Fonts\gotham-bold.otf`, []byte("font"))
	src.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("jpeg-data"))
	src.putXML(resource.BarcodeTypes, "bc-1", `Barcodes\ean`, `<barcodeType id="bc-1" />`)
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.BinaryAttempts = 0

	_, err := New(cfg, newFakeEnv("a"), newFakeEnv("b"))
	assert.Error(t, err)

	_, err = New(testConfig(), nil, newFakeEnv("b"))
	assert.Error(t, err)
}

func TestTransfer_UnknownKind(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig())

	_, err := e.Transfer(context.Background(), resource.Kind("Pictures"), []string{"x"}, DefaultOptions())
	assert.Error(t, err)
}

func TestTransfer_BinaryPreservesIdentifierAndPath(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\Spring\hero.jpg`, []byte("jpeg-data"))

	report, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	o, ok := report.Lookup(resource.Unit{Kind: resource.Assets, ID: "asset-1"})
	require.True(t, ok)
	assert.Equal(t, StatusMigrated, o.Status)
	assert.Equal(t, 1, o.Attempts)
	assert.Equal(t, "hero.jpg", o.Name)

	got := dst.items[resource.Unit{Kind: resource.Assets, ID: "asset-1"}]
	require.NotNil(t, got)
	assert.Equal(t, "asset-1", got.def.ID)
	assert.Equal(t, `Images\Spring\hero.jpg`, *got.def.RelativePath)
	assert.Equal(t, []byte("jpeg-data"), got.data)
	assert.Equal(t, []string{"preview false", "reserve Assets/asset-1", "add Assets/asset-1"}, dst.calls)
}

func TestTransfer_ExplicitDestinationPath(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\Spring\hero.jpg`, []byte("jpeg-data"))

	opts := DefaultOptions()
	opts.DestPath = resource.ExplicitPath(`Migrated\`)
	_, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, opts)
	require.NoError(t, err)

	got := dst.items[resource.Unit{Kind: resource.Assets, ID: "asset-1"}]
	require.NotNil(t, got)
	assert.Equal(t, `Migrated\hero.jpg`, *got.def.RelativePath)
}

func TestTransfer_BinarySucceedsOnLastAttempt(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Fonts, "font-1", `Fonts\a.otf`, []byte("0123456789"))

	dst.uploadHook = func(n int, data []byte) []byte {
		if n < 6 {
			return data[:n]
		}
		return data
	}

	report, err := e.Transfer(context.Background(), resource.Fonts, []string{"font-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Fonts, ID: "font-1"})
	assert.Equal(t, StatusMigrated, o.Status)
	assert.Equal(t, 6, o.Attempts)
	assert.Equal(t, 6, dst.uploads)
	assert.Len(t, dst.callsWithPrefix("add "), 1)
	assert.Len(t, dst.callsWithPrefix("replace "), 5)
	assert.Empty(t, dst.callsWithPrefix("delete "))
}

func TestTransfer_BinaryExhaustedIsDeleted(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Fonts, "font-1", `Fonts\a.otf`, []byte("0123456789"))
	dst.uploadHook = func(n int, data []byte) []byte { return data[:1] }

	report, err := e.Transfer(context.Background(), resource.Fonts, []string{"font-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Fonts, ID: "font-1"})
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, 6, o.Attempts)
	assert.Equal(t, 6, dst.uploads)

	var verr *VerificationError
	assert.ErrorAs(t, o.Err, &verr)
	assert.Equal(t, []string{"delete Fonts/font-1"}, dst.callsWithPrefix("delete "))
	assert.NotContains(t, dst.items, resource.Unit{Kind: resource.Fonts, ID: "font-1"})

	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "Fonts/font-1")
}

func TestTransfer_BinaryNeverAddedIsNotDeleted(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("x"))
	dst.addErr[resource.Assets] = errors.New("status 500")

	report, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Assets, ID: "asset-1"})
	assert.Equal(t, StatusFailed, o.Status)
	assert.Len(t, dst.callsWithPrefix("add "), 6)
	assert.Empty(t, dst.callsWithPrefix("delete "))
}

func TestTransfer_ExistingItemIsNotTouched(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("new"))
	dst.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("old"))

	report, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	o, _ := report.Lookup(resource.Unit{Kind: resource.Assets, ID: "asset-1"})
	assert.Equal(t, StatusExists, o.Status)
	assert.True(t, o.Available())
	assert.ErrorIs(t, o.Err, ErrAlreadyExists)
	assert.Equal(t, []byte("old"), dst.items[resource.Unit{Kind: resource.Assets, ID: "asset-1"}].data)
	assert.Empty(t, dst.callsWithPrefix("add ", "replace ", "delete "))
}

func TestTransfer_SecondRunIsIdempotent(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	putSmallDocument(src)

	_, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)
	dst.calls = nil

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)

	counts := report.Counts()
	assert.Equal(t, 1, counts[StatusExists])
	assert.Zero(t, counts[StatusMigrated])
	assert.Empty(t, dst.callsWithPrefix("add ", "save ", "delete "))
}

func TestTransfer_MissingOnSourceIsSkipped(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.PdfExportSettings, "pdf-2", `Pdf\print`, `<pdfSettings />`)

	report, err := e.Transfer(context.Background(), resource.PdfExportSettings, []string{"pdf-1", "pdf-2"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.PdfExportSettings, ID: "pdf-1"})
	assert.Equal(t, StatusSkipped, o.Status)
	assert.ErrorIs(t, o.Err, ErrNotFound)

	o, _ = report.Lookup(resource.Unit{Kind: resource.PdfExportSettings, ID: "pdf-2"})
	assert.Equal(t, StatusMigrated, o.Status)
	assert.Equal(t, []string{"reserve PdfExportSettings/pdf-2"}, dst.callsWithPrefix("reserve "))
	assert.Equal(t, `<pdfSettings />`, dst.items[resource.Unit{Kind: resource.PdfExportSettings, ID: "pdf-2"}].xml)
}

func TestTransfer_DefinitionSingleAttempt(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.UserGroups, "g-1", `Groups\editors`, `<group />`)
	dst.addErr[resource.UserGroups] = errors.New("status 500")

	report, err := e.Transfer(context.Background(), resource.UserGroups, []string{"g-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.UserGroups, ID: "g-1"})
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, 1, o.Attempts)
	assert.Len(t, dst.callsWithPrefix("add "), 1)
}

func TestTransfer_ItemWithoutPathFailsBeforeReserving(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.items[resource.Unit{Kind: resource.Assets, ID: "a"}] = &fakeItem{
		def: resource.Definition{Name: "a.jpg", ID: "a"},
	}

	report, err := e.Transfer(context.Background(), resource.Assets, []string{"a"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Assets, ID: "a"})
	assert.Equal(t, StatusFailed, o.Status)
	assert.ErrorIs(t, o.Err, resource.ErrMissingPath)
	assert.Empty(t, dst.callsWithPrefix("reserve "))
}

func TestTransfer_PreviewToggleFailureAbortsBatch(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("x"))
	dst.previewErr = errors.New("status 403")

	report, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreviewToggle)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, []string{"preview false"}, dst.calls)
}

func TestTransfer_PreviewsLeftAloneWhenNotRequested(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putFile(resource.Assets, "asset-1", `Images\a.jpg`, []byte("x"))
	dst.previewErr = errors.New("status 403")

	opts := DefaultOptions()
	opts.DisablePreviews = false
	_, err := e.Transfer(context.Background(), resource.Assets, []string{"asset-1"}, opts)
	require.NoError(t, err)
	assert.Empty(t, dst.callsWithPrefix("preview "))
}

func TestTransfer_FreshDestinationSessionPerItem(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.UserGroups, "g-1", `Groups\a`, `<group />`)
	src.putXML(resource.UserGroups, "g-2", `Groups\b`, `<group />`)
	src.putXML(resource.UserGroups, "g-3", `Groups\c`, `<group />`)

	opts := DefaultOptions()
	opts.DisablePreviews = false
	_, err := e.Transfer(context.Background(), resource.UserGroups, []string{"g-1", "g-2", "g-3"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 3, dst.connects)
	assert.Equal(t, 1, src.connects)
}

func TestTransfer_DocumentDependencyOrder(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	putSmallDocument(src)

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, []string{
		"reserve Documents/doc-1",
		"reserve Fonts/font-1",
		"add Fonts/font-1",
		"reserve Assets/asset-1",
		"add Assets/asset-1",
		"reserve BarcodeTypes/bc-1",
		"add BarcodeTypes/bc-1",
		"add Documents/doc-1",
		"save Documents/doc-1",
		"process doc-1",
	}, dst.callsWithPrefix("reserve ", "add ", "save ", "process "))

	doc := resource.Unit{Kind: resource.Documents, ID: "doc-1"}
	o, _ := report.Lookup(doc)
	assert.Equal(t, StatusMigrated, o.Status)
	assert.Nil(t, o.Parent)

	font, _ := report.Lookup(resource.Unit{Kind: resource.Fonts, ID: "font-1"})
	require.NotNil(t, font.Parent)
	assert.Equal(t, doc, *font.Parent)

	// The document finishes after its dependencies.
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, doc, report.Outcomes[3].Unit)
	assert.Equal(t, 1, report.Run.Items)

	saved := dst.items[doc]
	require.NotNil(t, saved)
	parsed, err := document.Parse(saved.xml)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", parsed.ID())
	assert.Len(t, parsed.Frames(document.AnyFrame), 2)
}

func TestTransfer_DocumentFullDependencySet(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.Documents, "flyer", `Flyers\Spring Flyer`, flyerXML(t))
	src.putXML(resource.DataSources, "ds-7781", `Data\Prices`, `<dataSource dataSourceID="ds-7781" />`)
	src.putFile(resource.Fonts, "font-gotham-bold", `Fonts\bold.otf`, []byte("b"))
	src.putFile(resource.Fonts, "font-gotham-book", `Fonts\book.otf`, []byte("k"))
	src.putFile(resource.Assets, "asset-100", `Images\hero.jpg`, []byte("hero"))
	src.putFile(resource.Assets, "asset-200", `Logos\logo.png`, []byte("logo"))
	src.putXML(resource.DynamicAssetProviders, "dap-42", `Providers\dap`, `<provider />`)
	src.putXML(resource.BarcodeTypes, "bc-ean13", `Barcodes\ean`, `<barcodeType />`)
	src.putXML(resource.BarcodeTypes, "bc-qr", `Barcodes\qr`, `<barcodeType />`)

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"flyer"}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, []string{
		"reserve Documents/flyer",
		"reserve DataSources/ds-7781",
		"reserve Fonts/font-gotham-bold",
		"reserve Fonts/font-gotham-book",
		"reserve Assets/asset-100",
		"reserve Assets/asset-200",
		"reserve DynamicAssetProviders/dap-42",
		"reserve BarcodeTypes/bc-ean13",
		"reserve BarcodeTypes/bc-qr",
	}, dst.callsWithPrefix("reserve "))
	assert.Len(t, report.Outcomes, 9)
	assert.Equal(t, 9, report.Counts()[StatusMigrated])
}

func TestTransfer_SharedDependencyTransferredOnce(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	putSmallDocument(src)
	src.putXML(resource.Documents, "doc-2", `Cards\Card 2`, strings.Replace(smallDocument, `id="doc-1"`, `id="doc-2"`, 1))

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1", "doc-2", "doc-1"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"reserve Fonts/font-1"}, dst.callsWithPrefix("reserve Fonts/"))
	assert.Len(t, report.Outcomes, 5)
	assert.Equal(t, 5, report.Counts()[StatusMigrated])
}

func TestTransfer_DocumentSucceedsOnLastAttempt(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	putSmallDocument(src)
	dst.readHook = func(n int, xml string) string {
		if n < 20 {
			return document.Placeholder
		}
		return xml
	}

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Documents, ID: "doc-1"})
	assert.Equal(t, StatusMigrated, o.Status)
	assert.Equal(t, 20, o.Attempts)
	assert.Len(t, dst.callsWithPrefix("add Documents/"), 1)
	assert.Len(t, dst.callsWithPrefix("save "), 20)
	assert.Len(t, dst.callsWithPrefix("process "), 20)
	assert.Empty(t, dst.callsWithPrefix("delete "))
}

func TestTransfer_EmptyDocumentIsDeleted(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	putSmallDocument(src)
	dst.readHook = func(n int, xml string) string { return document.Placeholder }

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)

	doc := resource.Unit{Kind: resource.Documents, ID: "doc-1"}
	o, _ := report.Lookup(doc)
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, 20, o.Attempts)
	assert.Len(t, dst.callsWithPrefix("save "), 20)
	assert.Equal(t, []string{"delete Documents/doc-1"}, dst.callsWithPrefix("delete "))
	assert.NotContains(t, dst.items, doc)

	// Dependencies stay.
	assert.Contains(t, dst.items, resource.Unit{Kind: resource.Fonts, ID: "font-1"})
}

func TestTransfer_NotADocumentFails(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.Documents, "doc-1", `Cards\Card`, `<asset id="doc-1" />`)

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)

	o, _ := report.Lookup(resource.Unit{Kind: resource.Documents, ID: "doc-1"})
	assert.Equal(t, StatusFailed, o.Status)
	var perr *document.ParseError
	assert.ErrorAs(t, o.Err, &perr)
	assert.Empty(t, dst.callsWithPrefix("add "))
}

func TestTransfer_ReattachDataSource(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.Documents, "doc-1", `Cards\Card`, `<document id="doc-1">
  <dataSource dataSourceID="ds-1" name="old"><settings url="source" /></dataSource>
  <pages><item><frames><item id="f" type="text" /></frames></item></pages>
</document>`)
	src.putXML(resource.DataSources, "ds-1", `Data\prices`, `<dataSource dataSourceID="ds-1" name="old"><settings url="source" /></dataSource>`)
	dst.putXML(resource.DataSources, "ds-1", `Data\prices`, `<dataSource dataSourceID="ds-1" name="new"><settings url="dest" /></dataSource>`)

	opts := DefaultOptions()
	opts.ReattachDataSource = true
	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, opts)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	saved := dst.items[resource.Unit{Kind: resource.Documents, ID: "doc-1"}]
	require.NotNil(t, saved)
	assert.Contains(t, saved.xml, `url="dest"`)
	assert.NotContains(t, saved.xml, `url="source"`)
}

func TestTransfer_RecorderSeesEveryOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	cfg := testConfig()
	cfg.Recorder = rec
	e, src, _ := newTestEngine(t, cfg)
	putSmallDocument(src)

	report, err := e.Transfer(context.Background(), resource.Documents, []string{"doc-1"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, rec.begun)
	assert.Len(t, rec.outcomes, 4)
	assert.Same(t, report, rec.finished)
}

func TestTransfer_CancelledContext(t *testing.T) {
	e, src, dst := newTestEngine(t, testConfig())
	src.putXML(resource.UserGroups, "g-1", `Groups\a`, `<group />`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.DisablePreviews = false
	report, err := e.Transfer(ctx, resource.UserGroups, []string{"g-1"}, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, dst.calls)
}

func TestTransfer_EmptyList(t *testing.T) {
	e, _, dst := newTestEngine(t, testConfig())

	report, err := e.Transfer(context.Background(), resource.Assets, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, dst.calls)
}

func TestItemInterval_PacesItems(t *testing.T) {
	cfg := testConfig()
	cfg.ItemInterval = 20 * time.Millisecond
	e, src, _ := newTestEngine(t, cfg)
	src.putXML(resource.UserGroups, "g-1", `Groups\a`, `<group />`)
	src.putXML(resource.UserGroups, "g-2", `Groups\b`, `<group />`)
	src.putXML(resource.UserGroups, "g-3", `Groups\c`, `<group />`)

	opts := DefaultOptions()
	opts.DisablePreviews = false
	start := time.Now()
	_, err := e.Transfer(context.Background(), resource.UserGroups, []string{"g-1", "g-2", "g-3"}, opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestItemInterval_CancelStopsBatch(t *testing.T) {
	cfg := testConfig()
	cfg.ItemInterval = time.Hour
	e, src, _ := newTestEngine(t, cfg)
	src.putXML(resource.UserGroups, "g-1", `Groups\a`, `<group />`)
	src.putXML(resource.UserGroups, "g-2", `Groups\b`, `<group />`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	opts := DefaultOptions()
	opts.DisablePreviews = false
	report, err := e.Transfer(ctx, resource.UserGroups, []string{"g-1", "g-2"}, opts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusMigrated, report.Outcomes[0].Status)
}

func TestRetryPolicy_NewBackOff(t *testing.T) {
	assert.IsType(t, &backoff.ZeroBackOff{}, RetryPolicy{}.NewBackOff())

	c := ConstantRetry(200 * time.Millisecond).NewBackOff()
	assert.Equal(t, 200*time.Millisecond, c.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, c.NextBackOff())

	exp := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}.NewBackOff()
	assert.Equal(t, 100*time.Millisecond, exp.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, exp.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, exp.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, exp.NextBackOff())
}
