package builtin

import (
	"sync"

	"github.com/kbukum/runemaster/httpclient"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/storage"
	"github.com/kbukum/runemaster/task"
)

// Type tags. They match the persisted task_type values.
const (
	TagDownload     = "DownloadTask"
	TagCSVQuery     = "CSVQueryTask"
	TagSSHUpload    = "SSHUploadTask"
	TagObjectUpload = "ObjectUploadTask"
)

// Options carries the runtime dependencies of the built-in types.
type Options struct {
	// HTTP fetches remote DownloadTask sources. Nil uses a default client
	// with retry.
	HTTP *httpclient.Client
	// ObjectStorage receives ObjectUploadTask datasets.
	ObjectStorage storage.Storage
	Log           *logger.Logger
}

var (
	download     = &DownloadTask{}
	csvQuery     = &CSVQueryTask{}
	sshUpload    = &SSHUploadTask{}
	objectUpload = &ObjectUploadTask{}

	configureMu sync.Mutex
)

func init() {
	task.RegisterType(download)
	task.RegisterType(csvQuery)
	task.RegisterType(sshUpload)
	task.RegisterType(objectUpload)
}

// Configure injects runtime dependencies into the registered built-ins.
func Configure(opts Options) {
	configureMu.Lock()
	defer configureMu.Unlock()

	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	download.configure(opts.HTTP, log)
	sshUpload.configure(log)
	objectUpload.configure(opts.ObjectStorage, log)
}

// Register adds fresh instances of every built-in type to reg.
func Register(reg *task.Registry, opts Options) error {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	d := &DownloadTask{}
	d.configure(opts.HTTP, log)
	s := &SSHUploadTask{}
	s.configure(log)
	o := &ObjectUploadTask{}
	o.configure(opts.ObjectStorage, log)

	for _, t := range []task.Type{d, &CSVQueryTask{}, s, o} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
