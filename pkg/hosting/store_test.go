package hosting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"mercator-hq/ganymede/pkg/redirect"
)

type recordingGenerator struct {
	calls    int
	lastSeen []string // session IDs of the last Generate input
	err      error
}

func (g *recordingGenerator) Generate(sessions []*ProvisioningSession, certFiles map[string]string) ([]byte, error) {
	g.calls++
	g.lastSeen = g.lastSeen[:0]
	for _, s := range sessions {
		g.lastSeen = append(g.lastSeen, s.ID)
	}
	if g.err != nil {
		return nil, g.err
	}
	return []byte("artifact"), nil
}

type recordingApplier struct {
	calls int
	err   error
}

func (a *recordingApplier) Apply(context.Context, []byte) error {
	a.calls++
	return a.err
}

type recordingPurger struct {
	sessionID string
	pattern   *regexp.Regexp
	purged    int
	err       error
}

func (p *recordingPurger) PurgeCache(_ context.Context, sessionID string, pattern *regexp.Regexp) (int, error) {
	p.sessionID = sessionID
	p.pattern = pattern
	return p.purged, p.err
}

type storeFixture struct {
	store     *Store
	generator *recordingGenerator
	applier   *recordingApplier
	purger    *recordingPurger
	table     *redirect.Table
	certDir   string
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		generator: &recordingGenerator{},
		applier:   &recordingApplier{},
		purger:    &recordingPurger{},
		table:     redirect.NewTable(0),
		certDir:   t.TempDir(),
	}
	f.store = NewStore(StoreConfig{CertificateDir: f.certDir},
		f.generator, f.applier, f.purger, f.table, nil, nil)
	return f
}

func validSession(prefix string) *ProvisioningSession {
	return &ProvisioningSession{
		IngestConfiguration: IngestConfiguration{
			Pull:     true,
			Protocol: ProtocolHTTPPullIngest,
			BaseURL:  "http://origin.example.com/",
		},
		DistributionConfigurations: []DistributionConfiguration{
			{BaseURL: "http://cdn.example.com" + prefix},
		},
	}
}

func TestPutCreatesAndReplaces(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	created, err := f.store.Put(ctx, "S1", validSession("/m4d/S1/"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !created {
		t.Error("created = false on first Put")
	}
	if f.applier.calls != 1 {
		t.Errorf("applier calls = %d, want 1", f.applier.calls)
	}

	created, err = f.store.Put(ctx, "S1", validSession("/m4d/S1-v2/"))
	if err != nil {
		t.Fatalf("replacing Put() error = %v", err)
	}
	if created {
		t.Error("created = true on replacement")
	}

	sess, err := f.store.Get("S1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := sess.DistributionConfigurations[0].PathPrefix(); got != "/m4d/S1-v2/" {
		t.Errorf("prefix = %q, want replacement", got)
	}
}

func TestPutValidationFailureDoesNotApply(t *testing.T) {
	f := newStoreFixture(t)

	bad := validSession("/m4d/S1/")
	bad.IngestConfiguration.Protocol = "ftp"
	if _, err := f.store.Put(context.Background(), "S1", bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("Put() error = %v, want ErrValidation", err)
	}
	if f.generator.calls != 0 || f.applier.calls != 0 {
		t.Error("generation or apply ran for an invalid record")
	}
	if len(f.store.List()) != 0 {
		t.Error("invalid record was stored")
	}
}

func TestPutRollsBackOnApplyFailure(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/S1/")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	f.applier.err = errors.New("reload failed")
	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/S1-v2/")); err == nil {
		t.Fatal("Put() error = nil with failing applier, want error")
	}

	// Visible state still reflects the last successfully-applied record.
	sess, err := f.store.Get("S1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := sess.DistributionConfigurations[0].PathPrefix(); got != "/m4d/S1/" {
		t.Errorf("prefix = %q, want rolled-back original", got)
	}

	// A failed create leaves no record behind.
	if _, err := f.store.Put(ctx, "S2", validSession("/m4d/S2/")); err == nil {
		t.Fatal("create Put() error = nil with failing applier, want error")
	}
	if _, err := f.store.Get("S2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(S2) error = %v, want ErrNotFound", err)
	}
}

func TestPutRejectsCrossSessionPrefixCollision(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/shared/")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := f.store.Put(ctx, "S2", validSession("/m4d/shared/")); !errors.Is(err, ErrValidation) {
		t.Errorf("colliding Put() error = %v, want ErrValidation", err)
	}
}

func TestDeleteFlushesRedirects(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/S1/")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := f.table.Allocate("/m4d/S1/", "/m4d/S1/variant-a/"); err != nil {
		t.Fatal(err)
	}

	if err := f.store.Delete(ctx, "S1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := f.table.Len(); n != 0 {
		t.Errorf("redirect entries = %d after delete, want 0", n)
	}
	if err := f.store.Delete(ctx, "S1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRestoresOnApplyFailure(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/S1/")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	f.applier.err = errors.New("reload failed")
	if err := f.store.Delete(ctx, "S1"); err == nil {
		t.Fatal("Delete() error = nil with failing applier, want error")
	}
	if _, err := f.store.Get("S1"); err != nil {
		t.Errorf("session vanished after failed delete: %v", err)
	}
}

func TestPurge(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.Put(ctx, "S1", validSession("/m4d/S1/")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	f.purger.purged = 4
	purged, err := f.store.Purge(ctx, "S1", `\.mpd$`)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if purged != 4 {
		t.Errorf("purged = %d, want 4", purged)
	}
	if f.purger.sessionID != "S1" || f.purger.pattern == nil {
		t.Errorf("purger saw (%q, %v)", f.purger.sessionID, f.purger.pattern)
	}

	if _, err := f.store.Purge(ctx, "S1", "[bad"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad pattern Purge() error = %v, want ErrValidation", err)
	}
	if _, err := f.store.Purge(ctx, "absent", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session Purge() error = %v, want ErrNotFound", err)
	}

	f.purger.err = errors.New("scan failed")
	if _, err := f.store.Purge(ctx, "S1", ""); !errors.Is(err, ErrUpstream) {
		t.Errorf("failing purger error = %v, want ErrUpstream", err)
	}
}

func TestCertificateLifecycle(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	pem := []byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n")

	changed, err := f.store.PutCertificate(ctx, "cert-1", pem)
	if err != nil {
		t.Fatalf("PutCertificate() error = %v", err)
	}
	if !changed {
		t.Error("changed = false on first upload")
	}
	if _, err := os.Stat(filepath.Join(f.certDir, "cert-1")); err != nil {
		t.Errorf("cached PEM file missing: %v", err)
	}

	// Identical re-upload is reported unchanged.
	changed, err = f.store.PutCertificate(ctx, "cert-1", pem)
	if err != nil {
		t.Fatalf("re-upload error = %v", err)
	}
	if changed {
		t.Error("changed = true for identical material")
	}

	if err := f.store.DeleteCertificate(ctx, "cert-1"); err != nil {
		t.Fatalf("DeleteCertificate() error = %v", err)
	}
	if err := f.store.DeleteCertificate(ctx, "cert-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestCertificateUpdateTriggersReload(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.PutCertificate(ctx, "cert-1", []byte("version one")); err != nil {
		t.Fatal(err)
	}

	sess := validSession("/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "cert-1"
	if _, err := f.store.Put(ctx, "S1", sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	applied := f.applier.calls

	if _, err := f.store.PutCertificate(ctx, "cert-1", []byte("version two")); err != nil {
		t.Fatalf("update error = %v", err)
	}
	if f.applier.calls != applied+1 {
		t.Errorf("applier calls = %d, want %d after referenced update", f.applier.calls, applied+1)
	}
}

func TestDeleteCertificateInUse(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.PutCertificate(ctx, "cert-1", []byte("pem")); err != nil {
		t.Fatal(err)
	}
	sess := validSession("/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "cert-1"
	if _, err := f.store.Put(ctx, "S1", sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	err := f.store.DeleteCertificate(ctx, "cert-1")
	var inUse *InUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("DeleteCertificate() error = %v, want *InUseError", err)
	}
	if len(inUse.SessionIDs) != 1 || inUse.SessionIDs[0] != "S1" {
		t.Errorf("SessionIDs = %v, want [S1]", inUse.SessionIDs)
	}
}

func TestPutRejectsUnknownCertificate(t *testing.T) {
	f := newStoreFixture(t)

	sess := validSession("/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "absent"
	if _, err := f.store.Put(context.Background(), "S1", sess); !errors.Is(err, ErrValidation) {
		t.Errorf("Put() error = %v, want ErrValidation", err)
	}
}

func TestReloadCertificatesPicksUpDroppedFiles(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(f.certDir, "cert-1"), []byte("pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	changed, err := f.store.ReloadCertificates(ctx)
	if err != nil {
		t.Fatalf("ReloadCertificates() error = %v", err)
	}
	if !changed {
		t.Error("changed = false after new file appeared")
	}
	if !f.store.HasCertificate("cert-1") {
		t.Error("dropped-in certificate not visible")
	}

	// A second scan with nothing new reports no change.
	changed, err = f.store.ReloadCertificates(ctx)
	if err != nil {
		t.Fatalf("second ReloadCertificates() error = %v", err)
	}
	if changed {
		t.Error("changed = true with no filesystem change")
	}
}

func TestReloadCertificatesRefusesToDropReferenced(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	if _, err := f.store.PutCertificate(ctx, "cert-1", []byte("pem")); err != nil {
		t.Fatal(err)
	}
	sess := validSession("/m4d/S1/")
	sess.DistributionConfigurations[0].CertificateID = "cert-1"
	if _, err := f.store.Put(ctx, "S1", sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := os.Remove(filepath.Join(f.certDir, "cert-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.ReloadCertificates(ctx); err == nil {
		t.Error("ReloadCertificates() error = nil after referenced file vanished, want error")
	}
	if !f.store.HasCertificate("cert-1") {
		t.Error("referenced certificate dropped from the in-memory map")
	}
}

func TestListSorted(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	for _, id := range []string{"S3", "S1", "S2"} {
		if _, err := f.store.Put(ctx, id, validSession("/m4d/"+id+"/")); err != nil {
			t.Fatalf("Put(%s) error = %v", id, err)
		}
	}
	ids := f.store.List()
	want := []string{"S1", "S2", "S3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List() = %v, want %v", ids, want)
		}
	}
	if len(f.generator.lastSeen) != 3 {
		t.Errorf("generator saw %d sessions, want 3", len(f.generator.lastSeen))
	}
}
