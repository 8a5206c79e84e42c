// Package extract 把原始HTML映射为结构化记录:书籍元数据、目录、章节正文、分类页书籍列表。
//
// 所有函数都是全函数:输入的标记可能残缺、是反爬页面或属于另一套模板,
// 任何字段缺失时返回空串、空列表或零值,从不返回错误。每个字段按各自的
// 选择器回退链独立求值,第一个非空结果胜出。
package extract
