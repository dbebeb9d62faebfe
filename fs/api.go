/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Sun Apr 15 15:02:40 2018 mstenber
 * Last modified: Sun Apr 15 15:30:12 2018 mstenber
 * Edit time:     14 min
 *
 */

package fs

// The functions here operate on the volume mounted with MountFs.

func current(op string) (*Fs, error) {
	fs := Mounted()
	if fs == nil {
		return nil, handleError(op, NoHandle, ErrNotMounted)
	}
	return fs, nil
}

// UmountFs unmounts the volume, which must be the mounted one.
func UmountFs(name string) error {
	fs := Mounted()
	if fs == nil || fs.name != name {
		return nameError("umount_fs", name, ErrNotMounted)
	}
	return fs.Unmount()
}

func FsCreate(name string) error {
	fs, err := current("create")
	if err != nil {
		return err
	}
	return fs.Create(name)
}

func FsDelete(name string) error {
	fs, err := current("delete")
	if err != nil {
		return err
	}
	return fs.Delete(name)
}

func FsOpen(name string) (Handle, error) {
	fs, err := current("open")
	if err != nil {
		return NoHandle, err
	}
	return fs.Open(name)
}

func FsClose(h Handle) error {
	fs, err := current("close")
	if err != nil {
		return err
	}
	return fs.Close(h)
}

func FsRead(h Handle, buf []byte) (int, error) {
	fs, err := current("read")
	if err != nil {
		return 0, err
	}
	return fs.Read(h, buf)
}

func FsWrite(h Handle, buf []byte) (int, error) {
	fs, err := current("write")
	if err != nil {
		return 0, err
	}
	return fs.Write(h, buf)
}

func FsLseek(h Handle, offset int64) error {
	fs, err := current("lseek")
	if err != nil {
		return err
	}
	return fs.Seek(h, offset)
}

func FsTruncate(h Handle, length int64) error {
	fs, err := current("truncate")
	if err != nil {
		return err
	}
	return fs.Truncate(h, length)
}

func FsGetFilesize(h Handle) (int64, error) {
	fs, err := current("get_filesize")
	if err != nil {
		return 0, err
	}
	return fs.FileSize(h)
}
