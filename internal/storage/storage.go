// Package storage はクライアント側の永続キー・バリューストレージを提供する。
//
// ブラウザの localStorage に相当し、セッションストアがトークンと
// ユーザー情報を保存するために使用する。バックエンドはメモリ、JSONファイル、
// SQLite、PostgreSQLから選択でき、Sealedで値を暗号化・改ざん検知付きにできる。
package storage

// Storage は文字列キーと文字列値の永続ストレージ。
// 存在しないキーの取得はエラーではなく ok=false を返す。
// 存在しないキーの削除もエラーにしない。
type Storage interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Driver はストレージの実装種別。
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)
